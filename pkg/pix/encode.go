// Package pix builds merchant-presented instant-payment charge payloads in
// the EMV tag-length-value text format, checksum included. Encoding is pure
// and total: malformed inputs are sanitized, never rejected, so a charge can
// always be rendered even from an incomplete merchant profile.
package pix

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Top-level field tags, in emission order.
const (
	tagPayloadFormat     = "00"
	tagInitiationMethod  = "01"
	tagMerchantAccount   = "26"
	tagMerchantCategory  = "52"
	tagCurrency          = "53"
	tagAmount            = "54"
	tagCountryCode       = "58"
	tagMerchantName      = "59"
	tagMerchantCity      = "60"
	tagAdditionalData    = "62"
	tagCRC               = "63"

	// Merchant account sub-fields.
	subGUI         = "00"
	subKey         = "01"
	subDescription = "02"

	// Additional data sub-fields.
	subTxID = "05"
)

const (
	payloadFormatValue = "01"
	initiationOnce     = "12" // single-use charge
	networkGUI         = "br.gov.bcb.pix"
	categoryNone       = "0000"
	currencyBRL        = "986"
	countryBR          = "BR"
	defaultTxID        = "***"

	maxDescriptionLen = 72
	maxNameLen        = 25
	maxCityLen        = 15
	maxTxIDLen        = 25

	// The network caps registered keys at 77 characters, and the two-digit
	// length header caps any value at 99 bytes.
	maxKeyLen   = 77
	maxValueLen = 99
)

// KeyType identifies the kind of instant-payment key a merchant registered.
type KeyType string

const (
	KeyPhone  KeyType = "phone"
	KeyCPF    KeyType = "cpf"
	KeyCNPJ   KeyType = "cnpj"
	KeyEmail  KeyType = "email"
	KeyRandom KeyType = "random"
)

// Charge describes one merchant-presented charge. Amount of zero means an
// open charge: the payer types the value and the amount field is omitted.
type Charge struct {
	Key          string
	KeyType      KeyType
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
	Description  string
}

// Encode renders the charge as a single ASCII payload string ending in its
// four-character checksum. Identical charges always encode to identical
// bytes, so re-rendering the same charge yields the same QR image.
func (c Charge) Encode() string {
	var b strings.Builder

	b.WriteString(field(tagPayloadFormat, payloadFormatValue))
	b.WriteString(field(tagInitiationMethod, initiationOnce))

	account := field(subGUI, networkGUI) + field(subKey, NormalizeKey(c.Key, c.KeyType))
	if c.Description != "" {
		// The description gets whatever room the key left in the account
		// block, so the block itself never outgrows its length header.
		room := maxValueLen - len(account) - 4
		if room > maxDescriptionLen {
			room = maxDescriptionLen
		}
		if room > 0 {
			if desc := truncate(printableASCII(c.Description), room); desc != "" {
				account += field(subDescription, desc)
			}
		}
	}
	b.WriteString(field(tagMerchantAccount, account))

	b.WriteString(field(tagMerchantCategory, categoryNone))
	b.WriteString(field(tagCurrency, currencyBRL))
	if c.Amount.IsPositive() {
		b.WriteString(field(tagAmount, c.Amount.StringFixed(2)))
	}
	b.WriteString(field(tagCountryCode, countryBR))
	b.WriteString(field(tagMerchantName, truncate(normalizeText(c.MerchantName), maxNameLen)))
	b.WriteString(field(tagMerchantCity, truncate(normalizeText(c.MerchantCity), maxCityLen)))

	txid := truncate(alphanumeric(c.TxID), maxTxIDLen)
	if txid == "" {
		txid = defaultTxID
	}
	b.WriteString(field(tagAdditionalData, field(subTxID, txid)))

	// The checksum covers the whole payload including its own tag and
	// length header.
	b.WriteString(tagCRC + "04")
	payload := b.String()
	return payload + Checksum(payload)
}

// field emits one tag-length-value triplet. A value past 99 bytes would push
// the length header to three digits and desync every field after it, so
// anything the callers did not already cap is clamped here.
func field(tag, value string) string {
	value = truncate(value, maxValueLen)
	return tag + fmt.Sprintf("%02d", len(value)) + value
}

// NormalizeKey canonicalizes a payment key for its registered type. Phone
// keys carry the +55 country prefix, document keys are digits only, e-mail
// keys are lowercased. Every key is capped at the network's registered
// maximum so it can never outgrow its length header.
func NormalizeKey(key string, kt KeyType) string {
	key = strings.TrimSpace(key)
	switch kt {
	case KeyPhone:
		digits := digitsOnly(key)
		switch {
		case digits == "":
			key = ""
		case strings.HasPrefix(digits, "55") && len(digits) > 11:
			key = "+" + digits
		default:
			key = "+55" + digits
		}
	case KeyCPF, KeyCNPJ:
		key = digitsOnly(key)
	case KeyEmail:
		key = strings.ToLower(key)
	}
	return truncate(key, maxKeyLen)
}

// normalizeText strips diacritics and drops everything that is not a letter,
// digit or space. Used for the merchant name and city fields, which the
// network restricts to plain ASCII.
func normalizeText(s string) string {
	stripped, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	for _, r := range stripped {
		if r == ' ' || (r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func alphanumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func printableASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r < 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate cuts before length-prefixing. A length header that disagrees with
// its value makes the payload unscannable.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
