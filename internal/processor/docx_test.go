package processor

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/scraper"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Verslag </w:t></w:r><w:r><w:t>raadsvergadering</w:t></w:r></w:p>
    <w:p><w:r><w:t>De raad stemt in met het voorstel.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Agendapunt</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Besluit</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

func writeDOCX(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verslag.docx")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestProcessDOCX(t *testing.T) {
	t.Parallel()

	path := writeDOCX(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   documentXML,
	})

	p := New(Config{}, zap.NewNop())
	result, err := p.Process(context.Background(), path, scraper.TypeDOCX)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Verslag raadsvergadering")
	assert.Contains(t, result.Text, "De raad stemt in met het voorstel.")
	assert.Contains(t, result.Text, "Agendapunt")
	assert.Contains(t, result.Text, "Besluit")
	assert.Zero(t, result.PageCount)
}

func TestProcessDOCXMissingDocumentXML(t *testing.T) {
	t.Parallel()

	path := writeDOCX(t, map[string]string{"[Content_Types].xml": "<Types/>"})

	p := New(Config{}, zap.NewNop())
	_, err := p.Process(context.Background(), path, scraper.TypeDOCX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml missing")
}

func TestProcessDOCXNotAZip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kapot.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o600))

	p := New(Config{}, zap.NewNop())
	_, err := p.Process(context.Background(), path, scraper.TypeDOCX)
	require.Error(t, err)
}

func TestProcessDOCXEmptyBody(t *testing.T) {
	t.Parallel()

	empty := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p></w:p></w:body>
</w:document>`
	path := writeDOCX(t, map[string]string{"word/document.xml": empty})

	p := New(Config{}, zap.NewNop())
	_, err := p.Process(context.Background(), path, scraper.TypeDOCX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text could be extracted")
}
