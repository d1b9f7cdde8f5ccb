package tag

import (
	"context"
	"errors"
	"testing"

	"foodgram-backend/domain"
	"foodgram-backend/entities"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestTagService(t *testing.T) TagService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&entities.Tag{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return NewTagService(NewTagRepository(db))
}

func TestCreateTagColorValidation(t *testing.T) {
	svc := newTestTagService(t)
	ctx := context.Background()

	cases := []struct {
		color string
		valid bool
	}{
		{"#E26C2D", true},
		{"#49B64E", true},
		{"#abc", true},
		{"E26C2D", false},
		{"#E26C2", false},
		{"#GGGGGG", false},
		{"", false},
	}

	for i, tc := range cases {
		req := domain.CreateTagRequest{
			Name:  "Tag" + string(rune('A'+i)),
			Color: tc.color,
			Slug:  "tag-" + string(rune('a'+i)),
		}
		_, err := svc.CreateTag(ctx, req)
		if tc.valid && err != nil {
			t.Errorf("color %q: unexpected err %v", tc.color, err)
		}
		if !tc.valid && !errors.Is(err, domain.ErrInvalidColor) {
			t.Errorf("color %q: err = %v, want %v", tc.color, err, domain.ErrInvalidColor)
		}
	}
}

func TestCreateTagDuplicate(t *testing.T) {
	svc := newTestTagService(t)
	ctx := context.Background()

	req := domain.CreateTagRequest{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"}
	if _, err := svc.CreateTag(ctx, req); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if _, err := svc.CreateTag(ctx, req); !errors.Is(err, domain.ErrTagAlreadyExists) {
		t.Errorf("duplicate err = %v, want %v", err, domain.ErrTagAlreadyExists)
	}
}

func TestGetTagsSorted(t *testing.T) {
	svc := newTestTagService(t)
	ctx := context.Background()

	for _, tag := range []domain.CreateTagRequest{
		{Name: "Dinner", Color: "#8775D2", Slug: "dinner"},
		{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
	} {
		if _, err := svc.CreateTag(ctx, tag); err != nil {
			t.Fatalf("CreateTag: %v", err)
		}
	}

	tags, err := svc.GetTags(ctx)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "Breakfast" || tags[1].Name != "Dinner" {
		t.Errorf("tags = %+v, want sorted by name", tags)
	}
}

func TestGetTagDetailNotFound(t *testing.T) {
	svc := newTestTagService(t)
	ctx := context.Background()

	if _, err := svc.GetTagDetail(ctx, uuid.NewString()); !errors.Is(err, domain.ErrTagNotFound) {
		t.Errorf("unknown id err = %v, want %v", err, domain.ErrTagNotFound)
	}
	if _, err := svc.GetTagDetail(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrTagNotFound) {
		t.Errorf("malformed id err = %v, want %v", err, domain.ErrTagNotFound)
	}
}
