package securemem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringReveal(t *testing.T) {
	s := NewString("hf_secret")
	defer s.Destroy()

	assert.Equal(t, "hf_secret", s.Reveal())
	assert.False(t, s.IsEmpty())
	assert.True(t, s.Equal("hf_secret"))
	assert.False(t, s.Equal("other"))
}

func TestStringNeverFormatsSecret(t *testing.T) {
	s := NewString("sk-live")
	defer s.Destroy()

	assert.Equal(t, "<redacted>", fmt.Sprintf("%v", s))
	assert.Equal(t, "<empty>", NewString("").String())
}

func TestStringDestroy(t *testing.T) {
	s := NewString("token")
	s.Destroy()

	assert.True(t, s.IsEmpty())
	assert.Equal(t, "", s.Reveal())
	assert.True(t, s.Equal(""))

	var nilString *String
	assert.True(t, nilString.IsEmpty())
	assert.Equal(t, "", nilString.Reveal())
	nilString.Destroy()
}

func TestKeyring(t *testing.T) {
	k := NewKeyring()
	defer k.Clear()

	k.Set("OPENAI_API_KEY", "sk-1")
	k.Set("HF_TOKEN", "hf-1")
	k.Set("EMPTY", "")

	assert.Equal(t, []string{"HF_TOKEN", "OPENAI_API_KEY"}, k.Names())
	assert.True(t, k.Has("HF_TOKEN"))
	assert.False(t, k.Has("EMPTY"))
	assert.Equal(t, "sk-1", k.Get("OPENAI_API_KEY").Reveal())

	old := k.Get("OPENAI_API_KEY")
	k.Set("OPENAI_API_KEY", "sk-2")
	assert.True(t, old.IsEmpty(), "replaced secret should be wiped")
	assert.Equal(t, "sk-2", k.Get("OPENAI_API_KEY").Reveal())

	k.Clear()
	assert.Empty(t, k.Names())
	assert.Nil(t, k.Get("HF_TOKEN"))
}
