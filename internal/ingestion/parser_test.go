package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile_PreservesOrderAcrossWorkers(t *testing.T) {
	parser := NewParser(7, 4, ',')

	result, err := parser.ParseFile(context.Background(), strings.NewReader(generateTestCSV(500)))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Records, 500)

	for i, r := range result.Records {
		assert.Equal(t, fmt.Sprintf("t%d", i), r.ID)
	}
}

func TestParseFile_HeaderInAnyOrder(t *testing.T) {
	data := "Date;Quantity;Action;PricePerUnit;Token\n" +
		"2024-01-10;15;sell;5;\n" +
		"2023-01-01;10;buy;1;BTC\n"

	result, err := NewParser(10, 1, ';').ParseFile(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	first := result.Records[0]
	assert.Equal(t, "sell", first.Action)
	assert.Equal(t, "15", first.Quantity.String())
	assert.Equal(t, "5", first.PricePerUnit.String())
	assert.Equal(t, "2024-01-10", first.Date.String())
	assert.Equal(t, "", first.Token)
	assert.Equal(t, "BTC", result.Records[1].Token)
}

func TestParseFile_GeneratesStableIDs(t *testing.T) {
	data := "action,quantity,pricePerUnit,date\nbuy,1,2,2024-01-01\nbuy,1,2,2024-01-01\n"
	parser := NewParser(10, 2, ',')

	first, err := parser.ParseFile(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	second, err := parser.ParseFile(context.Background(), strings.NewReader(data))
	require.NoError(t, err)

	require.Len(t, first.Records, 2)
	assert.NotEmpty(t, first.Records[0].ID)
	assert.NotEqual(t, first.Records[0].ID, first.Records[1].ID)
	assert.Equal(t, first.Records[0].ID, second.Records[0].ID)
}

func TestParseFile_KeepsLooseValues(t *testing.T) {
	data := "id,action,quantity,pricePerUnit,date\n" +
		"a,buy,,abc,2024-01-01\n" +
		"b,airdrop,1,0,2024-01-02\n"

	result, err := NewParser(10, 1, ',').ParseFile(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "", result.Records[0].Quantity.String())
	assert.Equal(t, "abc", result.Records[0].PricePerUnit.String())
	assert.Equal(t, "airdrop", result.Records[1].Action)
}

func TestParseFile_MissingColumns(t *testing.T) {
	_, err := NewParser(10, 1, ',').ParseFile(context.Background(), strings.NewReader("id,qty\n1,2\n"))
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestParseFile_Empty(t *testing.T) {
	result, err := NewParser(10, 1, ',').ParseFile(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result.Records)
}

func TestParseFile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser(10, 2, ',').ParseFile(ctx, strings.NewReader(generateTestCSV(100)))
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestParseFile_ReaderFailureStopsFile(t *testing.T) {
	errDisk := errors.New("falha de disco")
	reader := io.MultiReader(
		strings.NewReader("id,action,quantity,pricePerUnit,date\nb1,buy,1,1,2024-01-01\n"),
		failingReader{err: errDisk},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewParser(10, 2, ',').ParseFile(ctx, reader)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
}

func BenchmarkParser(b *testing.B) {

	csvData := generateTestCSV(100000)

	benchmarks := []struct {
		name      string
		batchSize int
		workers   int
	}{
		{"SingleWorker", 1000, 1},
		{"FourWorkers", 1000, 4},
		{"EightWorkers", 1000, 8},
		{"LargeBatch", 10000, 4},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			parser := NewParser(bm.batchSize, bm.workers, ',')

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				reader := bytes.NewReader([]byte(csvData))
				ctx := context.Background()

				_, err := parser.ParseFile(ctx, reader)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func generateTestCSV(lines int) string {
	var sb strings.Builder
	sb.WriteString("id,action,token,quantity,pricePerUnit,date\n")

	tokens := []string{"ETH", "BTC", "SOL", "USDC"}

	for i := 0; i < lines; i++ {
		action := "buy"
		if i%3 == 2 {
			action = "sell"
		}
		sb.WriteString(fmt.Sprintf(
			"t%d,%s,%s,%d,%.2f,2024-01-%02dT10:00:00Z\n",
			i, action, tokens[i%len(tokens)], 1+i%10, float64(20+i%30), 1+i%28,
		))
	}

	return sb.String()
}
