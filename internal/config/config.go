// Package config lê a configuração do ambiente (e de um .env opcional).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabasePath string
	Location     *time.Location

	PixKey          string
	PixMerchantName string
	PixMerchantCity string
	QRBaseURL       string

	WhatsAppEndpoint   string
	WhatsAppAPIKey     string
	WhatsAppInstanceID string
	NotifyMaxAttempts  int

	WebhookSecret string
	AdminAPIKey   string

	SchedulerSpec        string
	SchedulerWindowStart int
	SchedulerWindowEnd   int
}

// Load carrega o .env (se existir) e monta a configuração com os valores padrão.
// Variáveis já definidas no ambiente têm precedência sobre o arquivo.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			slog.Warn("Não foi possível ler arquivo de ambiente", "file", f, "error", err)
		}
	}

	tz := GetEnv("TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE inválido %q: %w", tz, err)
	}

	cfg := &Config{
		Port:         GetEnv("PORT", "8080"),
		DatabasePath: GetEnv("DATABASE_PATH", "./data/billing.db"),
		Location:     loc,

		PixKey:          GetEnv("PIX_KEY", ""),
		PixMerchantName: GetEnv("PIX_MERCHANT_NAME", "REVENDAS TV SAAS"),
		PixMerchantCity: GetEnv("PIX_MERCHANT_CITY", "SAO PAULO"),
		QRBaseURL:       GetEnv("QR_BASE_URL", "https://api.qrserver.com/v1/create-qr-code/"),

		WhatsAppEndpoint:   GetEnv("WHATSAPP_ENDPOINT", ""),
		WhatsAppAPIKey:     GetEnv("WHATSAPP_API_KEY", ""),
		WhatsAppInstanceID: GetEnv("WHATSAPP_INSTANCE_ID", ""),

		WebhookSecret: GetEnv("WEBHOOK_SECRET", ""),
		AdminAPIKey:   GetEnv("ADMIN_API_KEY", ""),

		SchedulerSpec: GetEnv("SCHEDULER_SPEC", "@every 1h"),
	}

	if cfg.NotifyMaxAttempts, err = getInt("NOTIFY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.SchedulerWindowStart, err = getInt("SCHEDULER_WINDOW_START", 9); err != nil {
		return nil, err
	}
	if cfg.SchedulerWindowEnd, err = getInt("SCHEDULER_WINDOW_END", 18); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.PixKey == "" {
		return fmt.Errorf("PIX_KEY é obrigatório")
	}
	if c.SchedulerWindowStart < 0 || c.SchedulerWindowEnd > 24 || c.SchedulerWindowStart >= c.SchedulerWindowEnd {
		return fmt.Errorf("janela do agendador inválida: %d-%d", c.SchedulerWindowStart, c.SchedulerWindowEnd)
	}
	return nil
}

// WhatsAppEnabled indica se o provedor de WhatsApp está configurado.
func (c *Config) WhatsAppEnabled() bool {
	return c.WhatsAppEndpoint != "" && c.WhatsAppAPIKey != "" && c.WhatsAppInstanceID != ""
}

// GetEnv devolve a variável de ambiente ou o valor padrão.
func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s deve ser inteiro: %w", key, err)
	}
	return n, nil
}
