package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRenderer_RejectsUnreadableInput(t *testing.T) {
	r := NewRenderer(0, zap.NewNop())

	for name, data := range map[string][]byte{
		"empty": nil,
		"text":  []byte("this is not a pdf"),
	} {
		t.Run(name, func(t *testing.T) {
			n, err := r.PageCount(data)
			assert.Error(t, err)
			assert.Zero(t, n)

			images, err := r.RenderJPEG(data, 2)
			assert.Error(t, err)
			assert.Empty(t, images)
		})
	}
}
