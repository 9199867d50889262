// Package i18n supplies the translate collaborator the session uses
// for user-facing text. The core never branches on translated strings;
// it passes keys and parameters through.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// TranslateFunc renders a message key with parameters.
type TranslateFunc func(key string, args ...interface{}) string

// Message keys the session emits.
const (
	KeyStatusProcessing = "status.processing"
	KeyStatusSuccess    = "status.success"
	KeyStatusCompressed = "status.compressed"
	KeyStatusProtected  = "status.protected"

	KeyErrNoFileSelected = "error.noFileSelected"
	KeyErrMissingRange   = "error.missingRange"
	KeyErrMissingText    = "error.missingText"
	KeyErrMissingPass    = "error.missingPassword"
	KeyErrEmptySignature = "error.emptySignature"
	KeyErrEncrypted      = "error.encrypted"
	KeyErrWrongPassword  = "error.wrongPassword"
	KeyErrDecode         = "error.decode"
	KeyErrInvalidParam   = "error.invalidParameter"
	KeyErrMalformed      = "error.malformed"
	KeyErrUnsupported    = "error.unsupported"
	KeyErrUnexpected     = "error.unexpected"
)

var english = map[string]string{
	KeyStatusProcessing: "Processing…",
	KeyStatusSuccess:    "Done! Your download is ready.",
	// Sizes arrive pre-formatted; the printer would group digits of a
	// float64 ("1,024.0").
	KeyStatusCompressed: "Compressed %s KB to %s KB.",
	KeyStatusProtected:  "Password added. Keep it safe.",

	KeyErrNoFileSelected: "Select a file first.",
	KeyErrMissingRange:   "Enter the pages to extract, e.g. 1-3,5.",
	KeyErrMissingText:    "Enter the watermark text.",
	KeyErrMissingPass:    "Enter a password.",
	KeyErrEmptySignature: "Draw a signature first.",
	KeyErrEncrypted:      "This PDF is password-protected. Unlock it first.",
	KeyErrWrongPassword:  "Incorrect password.",
	KeyErrDecode:         "This file could not be read.",
	KeyErrInvalidParam:   "One of the settings is out of range.",
	KeyErrMalformed:      "This file is damaged or not a PDF.",
	KeyErrUnsupported:    "This tool is not available.",
	KeyErrUnexpected:     "Something went wrong. Please try again.",
}

// Default returns the built-in English translator.
func Default() TranslateFunc {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range english {
		b.SetString(language.English, key, text)
	}
	p := message.NewPrinter(language.English, message.Catalog(b))
	return func(key string, args ...interface{}) string {
		return p.Sprintf(message.Key(key, key), args...)
	}
}
