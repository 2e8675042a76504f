package i18n

import "strings"

// Translator retrieves human-readable messages for rule failures.
// code is the canonical rule name (for example "required" or "requiredWith");
// data carries the field name under "attribute" plus rule arguments such as
// "min" or "other".
type Translator interface {
	Message(code string, data map[string]string) string
}

// TranslatorFunc adapts a plain function to Translator.
type TranslatorFunc func(code string, data map[string]string) string

func (f TranslatorFunc) Message(code string, data map[string]string) string { return f(code, data) }

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

// New returns the built-in dictionary Translator for lang ("en" or "ja").
// Unknown languages fall back to English.
func New(lang string) Translator {
	if lang != "ja" {
		lang = "en"
	}
	return dictTranslator{lang: lang}
}

// Default is the English dictionary Translator.
func Default() Translator { return dictTranslator{lang: "en"} }

var en = map[string]string{
	"required":     "The :attribute field is required.",
	"requiredWith": "The :attribute field is required when :other is present.",
	"string":       "The :attribute must be a string.",
	"array":        "The :attribute must be an array.",
	"object":       "The :attribute must be an object.",
	"boolean":      "The :attribute field must be true or false.",
	"accepted":     "The :attribute must be accepted.",
	"integer":      "The :attribute must be a number.",
	"url":          "The :attribute format is invalid.",
	"email":        "The :attribute must be a valid email address.",
	"date":         "The :attribute is not a valid date.",
	"time":         "The :attribute is not a valid time.",
	"min":          "The :attribute must be at least :min.",
}

var ja = map[string]string{
	"required":     ":attributeは必須です",
	"requiredWith": ":otherが指定されている場合、:attributeは必須です",
	"string":       ":attributeは文字列でなければなりません",
	"array":        ":attributeは配列でなければなりません",
	"object":       ":attributeはオブジェクトでなければなりません",
	"boolean":      ":attributeはtrueかfalseでなければなりません",
	"accepted":     ":attributeを承認してください",
	"integer":      ":attributeは数値でなければなりません",
	"url":          ":attributeの形式が不正です",
	"email":        ":attributeは有効なメールアドレスでなければなりません",
	"date":         ":attributeは有効な日付ではありません",
	"time":         ":attributeは有効な時刻ではありません",
	"min":          ":attributeは:min以上でなければなりません",
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	dict := en
	if t.lang == "ja" {
		dict = ja
	}
	tmpl, ok := dict[code]
	if !ok {
		if attr := data["attribute"]; attr != "" {
			return "The " + attr + " field is invalid."
		}
		return code
	}
	return Format(tmpl, data)
}

// Format replaces ":key" placeholders in tmpl with values from data. Longer
// keys are replaced first so ":attribute" never clobbers ":attr".
func Format(tmpl string, data map[string]string) string {
	if len(data) == 0 {
		return tmpl
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	// insertion sort by length desc; the key set is tiny
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && len(keys[j]) > len(keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, ":"+k, data[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
