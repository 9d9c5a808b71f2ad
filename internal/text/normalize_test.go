package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"html tags", "<p>Total <b>revenue</b></p>", "Total revenue"},
		{"whitespace runs", "a \t b\n\n  c", "a b c"},
		{"leading trailing", "  padded  ", "padded"},
		{"empty", "", ""},
		{"tags only", "<div></div>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestNormalizeCompany(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"suffix and punctuation", "Tesla, Inc.", "TESLA"},
		{"already upper", "TESLA INC", "TESLA"},
		{"multiple suffixes", "Acme Corporation, Inc.", "ACME CORPORATION"},
		{"ampersand", "Johnson & Johnson", "JOHNSON JOHNSON"},
		{"limited", "Vodafone Group Limited", "VODAFONE GROUP"},
		{"plc", "BP p.l.c.", "BP P L C"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCompany(tt.in))
		})
	}
}

func TestNormalizeCompany_CaseInsensitive(t *testing.T) {
	assert.Equal(t, NormalizeCompany("Tesla, Inc."), NormalizeCompany("TESLA INC"))
	assert.Equal(t, NormalizeCompany("acme corp"), NormalizeCompany("ACME CORP."))
}

func TestNormalizeCompany_Idempotent(t *testing.T) {
	inputs := []string{"Tesla, Inc.", "ACME CORPORATION", "Berkshire Hathaway Inc.", "co co co", ""}
	for _, in := range inputs {
		once := NormalizeCompany(in)
		assert.Equal(t, once, NormalizeCompany(once), "input %q", in)
	}
}
