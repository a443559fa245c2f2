package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalExpression(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"15 * 23 + 47 - 12", 380},
		{"2 * (3 + 4)", 14},
		{"10 / 4", 2.5},
		{"-3 + 5", 2},
		{"1.5 * 2", 3},
		{"((2))", 2},
	}

	for _, tt := range tests {
		got, err := evalExpression(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}

func TestEvalExpression_RejectsForeignCharacters(t *testing.T) {
	exprs := []string{
		"__import__('os')",
		"2 + x",
		"pow(2, 10)",
		"1; rm -rf /",
		"0x10",
	}

	for _, expr := range exprs {
		_, err := evalExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestEvalExpression_Malformed(t *testing.T) {
	exprs := []string{
		"",
		"1 +",
		"(1 + 2",
		"* 3",
		"1 2",
	}

	for _, expr := range exprs {
		_, err := evalExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestEvalExpression_DivisionByZero(t *testing.T) {
	_, err := evalExpression("1 / 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "380", formatNumber(380))
	assert.Equal(t, "2.5", formatNumber(2.5))
	assert.Equal(t, "0.1", formatNumber(0.1))
}
