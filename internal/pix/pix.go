// Package pix monta o "BR Code" (payload EMV-QR) usado pelos apps bancários
// para pagar uma cobrança PIX estática.
package pix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// IDs dos campos do BR Code, na ordem em que aparecem no payload.
const (
	idPayloadFormat       = "00"
	idMerchantAccount     = "26"
	idMerchantCategory    = "52"
	idTransactionCurrency = "53"
	idTransactionAmount   = "54"
	idCountryCode         = "58"
	idMerchantName        = "59"
	idMerchantCity        = "60"
	idAdditionalData      = "62"
	idCRC16               = "63"

	// Subcampos dos templates 26 e 62.
	idGUI  = "00"
	idKey  = "01"
	idTxID = "05"
)

const (
	gui             = "br.gov.bcb.pix"
	payloadFormat   = "01"
	categoryCode    = "0000"
	currencyBRL     = "986"
	countryCode     = "BR"
	defaultTxID     = "***"
	maxNameLength   = 25
	maxCityLength   = 15
	maxKeyLength    = 77
	maxFieldLength  = 99
	crcFieldPrefix  = idCRC16 + "04"
	crcDigitsLength = 4
)

var (
	ErrInvalidKey     = errors.New("chave pix inválida")
	ErrInvalidAmount  = errors.New("valor da cobrança não pode ser negativo")
	ErrFieldTooLong   = errors.New("campo excede 99 bytes")
	ErrMalformed      = errors.New("payload pix malformado")
	ErrChecksumFailed = errors.New("crc16 do payload não confere")
)

// Payload descreve uma cobrança. Amount nil gera um código sem valor fixo.
type Payload struct {
	Key          string
	MerchantName string
	MerchantCity string
	Amount       *decimal.Decimal
	TxID         string
}

// Field é um segmento TLV de nível superior do payload.
type Field struct {
	ID     string
	Length int
	Value  string
}

// Encode gera o BR Code completo, já com o CRC16 no final.
// Nome e cidade são truncados para o limite do formato em vez de falhar.
func Encode(p Payload) (string, error) {
	key := strings.Join(strings.Fields(p.Key), "")
	if key == "" || len(key) > maxKeyLength {
		return "", ErrInvalidKey
	}
	txID := p.TxID
	if txID == "" {
		txID = defaultTxID
	}

	var b strings.Builder
	fields := []segment{
		{idPayloadFormat, payloadFormat},
		{idMerchantAccount, tlv(idGUI, gui) + tlv(idKey, key)},
		{idMerchantCategory, categoryCode},
		{idTransactionCurrency, currencyBRL},
	}
	if p.Amount != nil {
		if p.Amount.IsNegative() {
			return "", ErrInvalidAmount
		}
		fields = append(fields, segment{idTransactionAmount, p.Amount.StringFixed(2)})
	}
	fields = append(fields,
		segment{idCountryCode, countryCode},
		segment{idMerchantName, truncate(p.MerchantName, maxNameLength)},
		segment{idMerchantCity, truncate(p.MerchantCity, maxCityLength)},
		segment{idAdditionalData, tlv(idTxID, txID)},
	)
	for _, f := range fields {
		if len(f.value) > maxFieldLength {
			return "", fmt.Errorf("campo %s: %w", f.id, ErrFieldTooLong)
		}
		b.WriteString(tlv(f.id, f.value))
	}
	b.WriteString(crcFieldPrefix)

	body := b.String()
	return body + CRC16(body), nil
}

// CRC16 calcula o CRC-16/CCITT-FALSE (polinômio 0x1021, inicial 0xFFFF, sem XOR final)
// e devolve 4 dígitos hexadecimais maiúsculos.
func CRC16(data string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}

// Parse percorre os campos TLV de nível superior.
func Parse(payload string) ([]Field, error) {
	var fields []Field
	for pos := 0; pos < len(payload); {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("%w: cabeçalho truncado na posição %d", ErrMalformed, pos)
		}
		id := payload[pos : pos+2]
		length, err := strconv.Atoi(payload[pos+2 : pos+4])
		if err != nil || length < 0 {
			return nil, fmt.Errorf("%w: tamanho inválido no campo %s", ErrMalformed, id)
		}
		end := pos + 4 + length
		if end > len(payload) {
			return nil, fmt.Errorf("%w: campo %s ultrapassa o payload", ErrMalformed, id)
		}
		fields = append(fields, Field{ID: id, Length: length, Value: payload[pos+4 : end]})
		pos = end
	}
	return fields, nil
}

// Validate confere a estrutura TLV e o CRC16 final.
func Validate(payload string) error {
	fields, err := Parse(payload)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrMalformed
	}
	last := fields[len(fields)-1]
	if last.ID != idCRC16 || last.Length != crcDigitsLength {
		return fmt.Errorf("%w: campo 63 ausente", ErrMalformed)
	}
	body := payload[:len(payload)-crcDigitsLength]
	if CRC16(body) != last.Value {
		return ErrChecksumFailed
	}
	return nil
}

type segment struct{ id, value string }

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
