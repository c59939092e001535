package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

const DefaultQRBaseURL = "https://api.qrserver.com/v1/create-qr-code/"

// QRServerRenderer monta a URL de um serviço que devolve a imagem do QR Code
// para o texto informado. Nenhuma chamada de rede é feita aqui.
type QRServerRenderer struct {
	BaseURL string
	Size    int
}

func (r QRServerRenderer) RenderQR(payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("payload vazio")
	}
	base := r.BaseURL
	if base == "" {
		base = DefaultQRBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return "", err
	}
	size := r.Size
	if size <= 0 {
		size = 250
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssize=%dx%d&data=%s", base, sep, size, size, url.QueryEscape(payload)), nil
}
