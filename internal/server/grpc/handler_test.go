package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/scriptureforge/offline/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestParseChapterRef(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want chapterRef
		code codes.Code
	}{
		{name: "ok", in: map[string]any{"translation": "ASV", "book": "John", "chapter": 3}, want: chapterRef{"ASV", "John", 3}},
		{name: "missing translation", in: map[string]any{"book": "John", "chapter": 3}, code: codes.InvalidArgument},
		{name: "blank book", in: map[string]any{"translation": "ASV", "book": "  ", "chapter": 3}, code: codes.InvalidArgument},
		{name: "chapter as string", in: map[string]any{"translation": "ASV", "book": "John", "chapter": "3"}, code: codes.InvalidArgument},
		{name: "chapter zero", in: map[string]any{"translation": "ASV", "book": "John", "chapter": 0}, code: codes.InvalidArgument},
		{name: "fractional chapter", in: map[string]any{"translation": "ASV", "book": "John", "chapter": 2.5}, code: codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := structpb.NewStruct(tt.in)
			require.NoError(t, err)

			got, err := parseChapterRef(in)
			if tt.code != codes.OK {
				assert.Equal(t, tt.code, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToStatus(t *testing.T) {
	s := newTestServer(1)
	ctx := context.Background()

	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: ASV John 1", common.ErrNotCached), codes.NotFound},
		{fmt.Errorf("x: %w: %w", common.ErrStorageUnavailable, errors.New("disk full")), codes.Unavailable},
		{common.ErrInvalidRole, codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(s.toStatus(ctx, tt.err)), tt.err.Error())
	}
}

func TestChat_Unconfigured(t *testing.T) {
	s := newTestServer(1)

	_, err := s.Chat(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
