package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Piyasalarda gün sonu</title></head>
<body>
	<nav><a href="/">Ana sayfa</a> <a href="/borsa">Borsa</a></nav>
	<article>
		<h1>Borsa güne yükselişle başladı</h1>
		<p>Borsa İstanbul'da BIST 100 endeksi güne yüzde 0,45 yükselişle 9.850 puandan başladı. Bankacılık endeksi yüzde 0,8 değer kazanırken holding endeksi yüzde 0,3 geriledi.</p>
		<p>Analistler, yurt içinde açıklanacak enflasyon verisi ile yurt dışında Fed yetkililerinin açıklamalarının piyasaların yönü üzerinde belirleyici olacağını belirtti.</p>
		<p>Dolar/TL paritesi ise güne yatay bir seyirle başladı ve sabah saatlerinde dar bir bantta işlem gördü.</p>
	</article>
	<footer>Tüm hakları saklıdır.</footer>
</body>
</html>`

func TestExtractor_Extract(t *testing.T) {
	t.Run("article", func(t *testing.T) {
		text, err := NewExtractor(50).Extract([]byte(articlePage), "https://example.com/haber/1")
		require.NoError(t, err)
		assert.Contains(t, text, "BIST 100 endeksi")
		assert.Contains(t, text, "enflasyon verisi")
	})

	t.Run("too short", func(t *testing.T) {
		_, err := NewExtractor(5000).Extract([]byte(articlePage), "https://example.com/haber/1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too short")
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := NewExtractor(0).Extract([]byte(articlePage), "not-a-url")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid URL")
	})

	t.Run("empty page", func(t *testing.T) {
		_, err := NewExtractor(0).Extract([]byte("<html><body></body></html>"), "https://example.com/x")
		require.Error(t, err)
	})
}
