package optin

import (
	"testing"

	"github.com/tj/assert"
)

func TestRegex(t *testing.T) {
	t.Run("prefix pattern", func(t *testing.T) {
		f := Regex("^prod_")
		assert.Nil(t, f.Err())
		assert.True(t, f.Eligible("prod_orders"))
		assert.False(t, f.Eligible("dev_orders"))
	})

	t.Run("match is anchored at the start only", func(t *testing.T) {
		f := Regex("prod")
		assert.True(t, f.Eligible("production_orders"))
		assert.False(t, f.Eligible("orders_prod"))
	})

	t.Run("no pattern opts everything in", func(t *testing.T) {
		f := Regex("")
		assert.True(t, f.Eligible("prod_orders"))
		assert.True(t, f.Eligible("dev_orders"))
		assert.True(t, f.Eligible(""))
	})

	t.Run("malformed pattern fails open", func(t *testing.T) {
		f := Regex("prod_(")
		assert.NotNil(t, f.Err())
		assert.True(t, f.Eligible("prod_orders"))
		assert.True(t, f.Eligible("dev_orders"))
	})

	t.Run("nil filter fails open", func(t *testing.T) {
		var f *RegexFilter
		assert.True(t, f.Eligible("dev_orders"))
	})
}

func TestFunc(t *testing.T) {
	var f Filter = Func(func(name string) bool { return name == "orders" })
	assert.True(t, f.Eligible("orders"))
	assert.False(t, f.Eligible("users"))
	assert.True(t, All.Eligible("anything"))
}
