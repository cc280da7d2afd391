package question_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/brainduel/internal/game/question"
)

type fixedSource struct{ vals []int }

func (f *fixedSource) Intn(n int) int {
	v := f.vals[0] % n
	f.vals = f.vals[1:]
	return v
}

func sample(n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			ID:      int64(i + 1),
			Prompt:  "q",
			Options: [4]string{"a", "b", "c", "d"},
			Answer:  int32(i % 4),
		}
	}
	return qs
}

func TestValidate(t *testing.T) {
	ok := sample(1)[0]
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Prompt = " "
	bad.Options[2] = ""
	bad.Answer = 4
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt")
	assert.Contains(t, err.Error(), "option 3")
	assert.Contains(t, err.Error(), "answer")
}

func TestBank_PickSkipsUsed(t *testing.T) {
	b := question.NewBank(sample(3))
	used := map[int]struct{}{0: {}, 2: {}}

	idx, ok := b.Pick(&fixedSource{vals: []int{0}}, used)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestBank_PickExhausted(t *testing.T) {
	b := question.NewBank(sample(2))
	_, ok := b.Pick(question.NewCryptoSource(), map[int]struct{}{0: {}, 1: {}})
	assert.False(t, ok)

	_, ok = question.NewBank(nil).Pick(question.NewCryptoSource(), nil)
	assert.False(t, ok)
}

func TestBank_CopiesInput(t *testing.T) {
	qs := sample(1)
	b := question.NewBank(qs)
	qs[0].Prompt = "changed"
	assert.Equal(t, "q", b.At(0).Prompt)
	assert.Equal(t, 1, b.Len())
}

func TestCryptoSource_PanicsOnNonPositive(t *testing.T) {
	assert.Panics(t, func() { question.NewCryptoSource().Intn(0) })
}

func TestLoadBytes(t *testing.T) {
	data := []byte(`
questions:
  - prompt: "Capital of France?"
    options: ["Paris", "Rome", "Oslo", "Bern"]
    answer: 1
  - prompt: "2+2?"
    options: ["3", "4", "5", "22"]
    answer: 2
`)
	qs, err := question.LoadBytes(data)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, int32(0), qs[0].Answer)
	assert.Equal(t, "Bern", qs[0].Options[3])
	assert.Equal(t, int32(1), qs[1].Answer)
}

func TestLoadBytes_Errors(t *testing.T) {
	cases := map[string]string{
		"three options": `questions: [{prompt: p, options: [a, b, c], answer: 1}]`,
		"answer zero":   `questions: [{prompt: p, options: [a, b, c, d], answer: 0}]`,
		"empty prompt":  `questions: [{prompt: "", options: [a, b, c, d], answer: 1}]`,
		"bad yaml":      `questions: [`,
	}
	for name, src := range cases {
		_, err := question.LoadBytes([]byte(src))
		assert.Error(t, err, name)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`questions: [{prompt: p, options: [a, b, c, d], answer: 4}]`), 0o600))

	qs, err := question.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, int32(3), qs[0].Answer)

	_, err = question.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// Property: repeated picks never return a used index and visit every question exactly once.
func TestPropertyPickVisitsEachOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		b := question.NewBank(sample(n))
		src := question.NewCryptoSource()
		used := make(map[int]struct{})

		for i := 0; i < n; i++ {
			idx, ok := b.Pick(src, used)
			if !ok {
				rt.Fatalf("bank exhausted after %d of %d picks", i, n)
			}
			if _, dup := used[idx]; dup {
				rt.Fatalf("index %d picked twice", idx)
			}
			used[idx] = struct{}{}
		}
		if _, ok := b.Pick(src, used); ok {
			rt.Fatalf("pick succeeded on exhausted bank")
		}
	})
}
