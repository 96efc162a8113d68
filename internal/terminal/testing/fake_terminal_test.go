package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type cancelCounter struct{ n int }

func (c *cancelCounter) OnCancel() { c.n++ }

func TestFakeTerminal_Writes(t *testing.T) {
	f := NewFakeTerminal()

	f.WriteLine("a")
	f.WriteLine("b")
	f.WriteError("boom")

	assert.Equal(t, "a\nb", f.Output())
	assert.Equal(t, []string{"boom"}, f.ErrorLines())
}

func TestFakeTerminal_CancelHandlers(t *testing.T) {
	f := NewFakeTerminal()
	c := &cancelCounter{}

	f.AddCancelHandler(c)
	f.PressCancel()
	f.RemoveCancelHandler(c)
	f.PressCancel()

	assert.Equal(t, 1, c.n)
	assert.Equal(t, 0, f.HandlerCount())
}
