package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPythonParser_Parse(t *testing.T) {
	t.Parallel()

	t.Run("ValidSource", func(t *testing.T) {
		t.Parallel()
		p := NewPythonParser()

		f, err := p.Parse("example.py", []byte("def add(a, b):\n    return a + b\n"))
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, "example.py", f.Path)
		assert.Equal(t, "module", f.Root().Kind())
		assert.False(t, f.Root().HasError())
	})

	t.Run("SyntaxError", func(t *testing.T) {
		t.Parallel()
		p := NewPythonParser()

		_, err := p.Parse("broken.py", []byte("def add(a, b:\n    return\n"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		t.Parallel()
		p := NewPythonParser()

		_, err := p.Parse("binary.py", []byte{0xff, 0xfe, 0x00})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		t.Parallel()
		p := NewPythonParser()

		f, err := p.Parse("empty.py", nil)
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, uint(0), f.Root().ChildCount())
	})

	t.Run("ReusableAcrossCalls", func(t *testing.T) {
		t.Parallel()
		p := NewPythonParser()

		for i := 0; i < 3; i++ {
			f, err := p.Parse("a.py", []byte("x = 1\n"))
			require.NoError(t, err)
			f.Close()
		}
	})
}

func TestSourceFile_Close(t *testing.T) {
	t.Parallel()

	p := NewPythonParser()
	f, err := p.Parse("a.py", []byte("x = 1\n"))
	require.NoError(t, err)

	f.Close()
	assert.Nil(t, f.Tree)
	f.Close() // second close is a no-op
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	t.Run("PythonByExtension", func(t *testing.T) {
		t.Parallel()
		p := r.ForPath("pkg/module.py")
		require.NotNil(t, p)
		assert.Equal(t, "python", p.Language())
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		t.Parallel()
		assert.NotNil(t, r.ForPath("SCRIPT.PY"))
	})

	t.Run("UnknownExtension", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, r.ForPath("main.go"))
	})

	t.Run("NoExtension", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, r.ForPath("Makefile"))
	})
}

func TestNodeText(t *testing.T) {
	t.Parallel()

	p := NewPythonParser()
	content := []byte("value = 42\n")
	f, err := p.Parse("a.py", content)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "value = 42\n", NodeText(f.Root(), content))
	assert.Equal(t, 1, Line(f.Root()))
}
