package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "254712345678", NormalizePhone("whatsapp:+254712345678"))
	assert.Equal(t, "0712345678", NormalizePhone("0712 345 678"))
	assert.Equal(t, "254712345678", NormalizePhone(" +254-712-345-678 "))
	assert.Equal(t, "", NormalizePhone("whatsapp:"))
}

func TestIsPhoneLike(t *testing.T) {
	assert.True(t, IsPhoneLike("+254712345678"))
	assert.True(t, IsPhoneLike("0712345678"))
	assert.False(t, IsPhoneLike("hello"))
	assert.False(t, IsPhoneLike("123"))
}

// Test: +254形式と0始まり形式は互いの候補を含む
func TestNumberVariants(t *testing.T) {
	v1 := NumberVariants("whatsapp:+254712345678")
	assert.Contains(t, v1, "254712345678")
	assert.Contains(t, v1, "0712345678")

	v2 := NumberVariants("0712345678")
	assert.Contains(t, v2, "0712345678")
	assert.Contains(t, v2, "254712345678")

	assert.Empty(t, NumberVariants(""))
}
