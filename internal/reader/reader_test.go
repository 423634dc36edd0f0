package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/detect"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

func writeTempFile(t *testing.T, name, content string) models.FileDescriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return models.FileDescriptor{Path: path, Type: models.TypeRevenue, Size: int64(len(content))}
}

func openAll(t *testing.T, desc models.FileDescriptor, content string) []*models.Record {
	t.Helper()
	rr, err := Open(desc, detect.Detect([]byte(content)))
	assert.NoError(t, err)
	defer rr.Close()

	var records []*models.Record
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		records = append(records, rec)
	}
	return records
}

func TestRecordReader_StreamsRows(t *testing.T) {
	content := "NR_CPF_CANDIDATO;VR_RECEITA;SG_UF\n111;100.00;SP\n222;0;RJ\n"
	desc := writeTempFile(t, "receitas_2024_SP.csv", content)

	records := openAll(t, desc, content)

	assert.Len(t, records, 2)
	assert.Equal(t, "111", records[0].Field("NR_CPF_CANDIDATO"))
	assert.Equal(t, "100.00", records[0].Field("VR_RECEITA"))
	assert.Equal(t, "SP", records[0].Field("SG_UF"))
	assert.Equal(t, int64(1), records[0].RowNumber)
	assert.Equal(t, int64(2), records[1].RowNumber)
	assert.Equal(t, desc.Path, records[0].SourceFile)
	assert.Equal(t, models.TypeRevenue, records[0].Type)
}

func TestRecordReader_RaggedRows(t *testing.T) {
	t.Run("short row leaves trailing fields absent", func(t *testing.T) {
		content := "A;B;C\n1;2\n"
		desc := writeTempFile(t, "receitas_short.csv", content)

		records := openAll(t, desc, content)

		assert.Len(t, records, 1)
		assert.Equal(t, "1", records[0].Field("A"))
		assert.Equal(t, "2", records[0].Field("B"))
		_, present := records[0].Fields["C"]
		assert.False(t, present, "missing cell must be absent, not empty")
	})

	t.Run("long row drops extra cells", func(t *testing.T) {
		content := "A;B\n1;2;3;4\n"
		desc := writeTempFile(t, "receitas_long.csv", content)

		records := openAll(t, desc, content)

		assert.Len(t, records, 1)
		assert.Len(t, records[0].Fields, 2)
		assert.Equal(t, "2", records[0].Field("B"))
	})
}

func TestRecordReader_QuotedFields(t *testing.T) {
	content := "\"NR_CPF_CANDIDATO\",\"VR_RECEITA\",\"SG_UF\"\n\"111\",\"100,00\",\"SP\"\n"
	desc := writeTempFile(t, "receitas_quoted.csv", content)

	records := openAll(t, desc, content)

	assert.Len(t, records, 1)
	assert.Equal(t, "100,00", records[0].Field("VR_RECEITA"))
	assert.Equal(t, "SP", records[0].Field("SG_UF"))
}

func TestRecordReader_Latin1File(t *testing.T) {
	// "São Paulo" encoded as ISO-8859-1: invalid under UTF-8, must still
	// decode with the fallback chain and yield every row.
	content := "NM_MUNICIPIO;SG_UF\nS\xe3o Paulo;SP\nBras\xedlia;DF\n"
	desc := writeTempFile(t, "receitas_latin1.csv", content)

	records := openAll(t, desc, content)

	assert.Len(t, records, 2)
	assert.Equal(t, "São Paulo", records[0].Field("NM_MUNICIPIO"))
	assert.Equal(t, "Brasília", records[1].Field("NM_MUNICIPIO"))
}

func TestRecordReader_HeaderOnly(t *testing.T) {
	content := "A;B;C\n"
	desc := writeTempFile(t, "receitas_empty.csv", content)

	rr, err := Open(desc, detect.Detect([]byte(content)))
	assert.NoError(t, err)
	defer rr.Close()

	assert.Equal(t, []string{"A", "B", "C"}, rr.Header())
	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRecordReader_BOMStripped(t *testing.T) {
	content := "\ufeffNR_CPF_CANDIDATO;VR_RECEITA\n111;10.00\n"
	desc := writeTempFile(t, "receitas_bom.csv", content)

	records := openAll(t, desc, content)

	assert.Len(t, records, 1)
	assert.Equal(t, "111", records[0].Field("NR_CPF_CANDIDATO"))
}

func TestRecordReader_LazyStreaming(t *testing.T) {
	// A reader over a large file must be interruptible after the first
	// row without consuming the rest.
	var b strings.Builder
	b.WriteString("NR_CPF_CANDIDATO;VR_RECEITA\n")
	for i := 0; i < 200000; i++ {
		fmt.Fprintf(&b, "%011d;10.00\n", i)
	}
	content := b.String()
	desc := writeTempFile(t, "receitas_huge.csv", content)

	rr, err := Open(desc, detect.Detect([]byte(content[:1024])))
	assert.NoError(t, err)

	rec, err := rr.Next()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rec.RowNumber)
	assert.NoError(t, rr.Close())
}

func TestRecordReader_TruncationOnDecodeFailure(t *testing.T) {
	// Big enough that the csv reader cannot buffer the whole file, so a
	// mid-stream read failure is guaranteed to surface.
	var b strings.Builder
	b.WriteString("A;B\n")
	for i := 0; i < 20000; i++ {
		fmt.Fprintf(&b, "%d;x\n", i)
	}
	content := b.String()
	desc := writeTempFile(t, "receitas_trunc.csv", content)

	rr, err := Open(desc, detect.Detect([]byte(content[:1024])))
	assert.NoError(t, err)

	rec, err := rr.Next()
	assert.NoError(t, err)
	assert.Equal(t, "0", rec.Field("A"))

	// Killing the underlying file mid-stream is the mid-file read
	// failure: already-yielded rows stand, the stream truncates.
	assert.NoError(t, rr.Close())

	var truncErr error
	for {
		_, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			truncErr = err
			break
		}
	}

	assert.Error(t, truncErr)
	assert.True(t, rr.Truncated())

	// After truncation the stream stays finished.
	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRecordReader_ParseErrorRowCountedAndSkipped(t *testing.T) {
	// A strict csv.Reader stands in for the rare row-local parse error
	// the lenient settings in Open almost never produce.
	cr := csv.NewReader(strings.NewReader("\"111\"x;10.00\n222;20.00\n"))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	rr := &RecordReader{
		desc:   models.FileDescriptor{Path: "receitas_2024_SP.csv", Type: models.TypeRevenue},
		csv:    cr,
		header: []string{"NR_CPF_CANDIDATO", "VR_RECEITA"},
	}

	rec, err := rr.Next()
	assert.NoError(t, err)
	assert.Equal(t, "222", rec.Field("NR_CPF_CANDIDATO"))
	// The dropped row keeps its slot in the numbering.
	assert.Equal(t, int64(2), rec.RowNumber)

	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(1), rr.SkippedRows())
	assert.False(t, rr.Truncated())
}
