// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package slug_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/topiq-dev/topiq/internal/slug"
)

func TestNormalizeAlias(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases latin", "Registration Deadlines", "registration deadlines"},
		{"collapses whitespace", "  how   do i\tpay  ", "how do i pay"},
		{"strips latin accents", "café résumé", "cafe resume"},
		{"strips arabic diacritics", "مَوَاعِيد", "مواعيد"},
		{"empty stays empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slug.NormalizeAlias(tt.in))
		})
	}
}

func TestNormalizeAliasIdempotent(t *testing.T) {
	inputs := []string{"Registration Deadlines", "مَوَاعِيد التسجيل", "café"}
	for _, in := range inputs {
		once := slug.NormalizeAlias(in)
		assert.Equal(t, once, slug.NormalizeAlias(once))
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, slug.LangEnglish, slug.DetectLanguage("when does registration close"))
	assert.Equal(t, slug.LangArabic, slug.DetectLanguage("متى يبدأ التسجيل"))
	assert.Equal(t, slug.LangMixed, slug.DetectLanguage("deadline التسجيل registration period"))
	assert.Equal(t, slug.LangUnknown, slug.DetectLanguage("123 !?"))
}

func TestMake(t *testing.T) {
	t.Run("picks meaningful words", func(t *testing.T) {
		got := slug.Make("When does the course registration close?")
		assert.Equal(t, "course_registration_close", got)
	})

	t.Run("skips stop words", func(t *testing.T) {
		got := slug.Make("what is the tuition payment deadline")
		assert.Equal(t, "tuition_payment_deadline", got)
	})

	t.Run("transliterates arabic", func(t *testing.T) {
		got := slug.Make("مواعيد التسجيل")
		assert.NotEmpty(t, got)
		for _, r := range got {
			assert.True(t, r <= 127, "expected ascii output, got %q", got)
		}
	})

	t.Run("never empty", func(t *testing.T) {
		assert.Equal(t, "topic_query", slug.Make(""))
		assert.Equal(t, "topic_query", slug.Make("?!"))
	})

	t.Run("bounded length", func(t *testing.T) {
		got := slug.Make(strings.Repeat("antidisestablishmentarianism ", 5))
		assert.LessOrEqual(t, len([]rune(got)), 30)
	})
}
