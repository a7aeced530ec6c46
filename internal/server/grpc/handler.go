package grpc

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type chapterRef struct {
	translation string
	book        string
	chapter     int
}

func stringField(in *structpb.Struct, name string) (string, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || strings.TrimSpace(s.StringValue) == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a non-empty string", name)
	}
	return s.StringValue, nil
}

func intField(in *structpb.Struct, name string) (int, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 1 || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a positive integer", name)
	}
	return int(n.NumberValue), nil
}

func parseChapterRef(in *structpb.Struct) (chapterRef, error) {
	var (
		ref chapterRef
		err error
	)
	if ref.translation, err = stringField(in, "translation"); err != nil {
		return ref, err
	}
	if ref.book, err = stringField(in, "book"); err != nil {
		return ref, err
	}
	if ref.chapter, err = intField(in, "chapter"); err != nil {
		return ref, err
	}
	return ref, nil
}

// toStatus maps store errors onto gRPC codes.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrNotCached):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrInvalidContentType), errors.Is(err, common.ErrInvalidRole):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrStorageUnavailable):
		s.logger.Error(ctx, "storage failure", "error", err)
		return status.Error(codes.Unavailable, "storage unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func (s *GRPCServer) GetChapter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ref, err := parseChapterRef(in)
	if err != nil {
		return nil, err
	}

	ch, err := s.content.GetOfflineChapter(ctx, ref.translation, ref.book, ref.chapter)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if ch == nil {
		return nil, status.Error(codes.NotFound, "chapter not cached")
	}

	verses := make([]any, 0, len(ch.Verses))
	for _, v := range ch.Verses {
		verses = append(verses, map[string]any{"verse": v.Verse, "text": v.Text})
	}
	return newStruct(map[string]any{
		"translation": ch.Translation,
		"book":        ch.Book,
		"chapter":     ch.Chapter,
		"verses":      verses,
	})
}

func (s *GRPCServer) ListTranslations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	all, err := s.content.GetDownloadedTranslations(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	list := make([]any, 0, len(all))
	for _, t := range all {
		list = append(list, map[string]any{
			"id":           t.ID,
			"name":         t.Name,
			"abbreviation": t.Abbreviation,
			"downloadedAt": t.DownloadedAt.UTC().Format(time.RFC3339),
			"verseCount":   t.VerseCount,
		})
	}
	return newStruct(map[string]any{"translations": list})
}

func (s *GRPCServer) TranslateChapter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ref, err := parseChapterRef(in)
	if err != nil {
		return nil, err
	}
	lang, err := stringField(in, "language")
	if err != nil {
		return nil, err
	}

	res, err := s.content.TranslateChapter(ctx, ref.translation, ref.book, ref.chapter, lang)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	verses := make([]any, 0, len(res.Verses))
	for _, v := range res.Verses {
		m := map[string]any{"verse": v.Verse, "text": v.Text}
		if v.OriginalText != "" {
			m["originalText"] = v.OriginalText
		}
		verses = append(verses, m)
	}
	return newStruct(map[string]any{
		"language":      lang,
		"wasTranslated": res.WasTranslated,
		"verses":        verses,
	})
}

func (s *GRPCServer) Chat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.responder == nil {
		return nil, status.Error(codes.Unimplemented, "chat is not configured")
	}

	raw := in.GetFields()["messages"].GetListValue().GetValues()
	if len(raw) == 0 {
		return nil, status.Error(codes.InvalidArgument, "messages must be a non-empty list")
	}
	history := make([]models.Message, 0, len(raw))
	for _, v := range raw {
		f := v.GetStructValue().GetFields()
		role := models.Role(f["role"].GetStringValue())
		if !role.Valid() {
			return nil, status.Errorf(codes.InvalidArgument, "invalid role %q", role)
		}
		history = append(history, models.Message{Role: role, Content: f["content"].GetStringValue()})
	}
	lang := in.GetFields()["language"].GetStringValue()

	reply, err := s.responder.Reply(ctx, history, lang)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{
		"content":    reply.Content,
		"model":      reply.Model,
		"tokensUsed": reply.TokensUsed,
	})
}
