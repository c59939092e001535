package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Padroes(t *testing.T) {
	t.Setenv("PIX_KEY", "revendas@to-ligado.com")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load(filepath.Join(t.TempDir(), "inexistente.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "REVENDAS TV SAAS", cfg.PixMerchantName)
	assert.Equal(t, "@every 1h", cfg.SchedulerSpec)
	assert.Equal(t, 9, cfg.SchedulerWindowStart)
	assert.Equal(t, 18, cfg.SchedulerWindowEnd)
	assert.Equal(t, 3, cfg.NotifyMaxAttempts)
	assert.False(t, cfg.WhatsAppEnabled())
}

func TestLoad_ArquivoEnv(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	// Garante que as variáveis vêm do arquivo e são limpas ao fim do teste.
	t.Setenv("PIX_KEY", "")
	t.Setenv("WHATSAPP_ENDPOINT", "")
	t.Setenv("WHATSAPP_API_KEY", "")
	t.Setenv("WHATSAPP_INSTANCE_ID", "")
	for _, k := range []string{"PIX_KEY", "WHATSAPP_ENDPOINT", "WHATSAPP_API_KEY", "WHATSAPP_INSTANCE_ID"} {
		os.Unsetenv(k)
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "PIX_KEY=chave@pix.com\nWHATSAPP_ENDPOINT=http://evolution:8080\nWHATSAPP_API_KEY=segredo\nWHATSAPP_INSTANCE_ID=revendas\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "chave@pix.com", cfg.PixKey)
	assert.True(t, cfg.WhatsAppEnabled())
}

func TestLoad_Invalido(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("PIX_KEY", "k")
	t.Setenv("SCHEDULER_WINDOW_START", "20")
	t.Setenv("SCHEDULER_WINDOW_END", "10")

	_, err := Load(filepath.Join(t.TempDir(), "x.env"))
	assert.Error(t, err)

	t.Setenv("SCHEDULER_WINDOW_START", "nove")
	_, err = Load(filepath.Join(t.TempDir(), "x.env"))
	assert.Error(t, err)
}

func TestLoad_SemChavePix(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("PIX_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "x.env"))
	assert.Error(t, err)
}
