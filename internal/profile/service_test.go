package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/nafee3/nafee3/internal/apperr"
)

const (
	aliID  = "5b1f3c9e-8a2d-4e6b-9c1a-0d2e3f4a5b6c"
	samiID = "7c2e4d0f-9b3e-4f7c-8d2b-1e3f4a5b6c7d"
)

func sampleProfile(id, name, description string) Profile {
	return Profile{
		ProfileID:          id,
		FullName:           name,
		PhoneNumber:        "+963911111111",
		DateOfBirth:        "1990-05-17",
		ServiceCity:        "Damascus",
		ServiceArea:        "Mezzeh",
		ServiceDescription: description,
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	svc := NewService(NewMemoryRepository(), Options{})
	ctx := context.Background()

	first := sampleProfile(aliID, "Ali", "plumbing and pipe repair")
	if _, created, err := svc.Create(ctx, aliID, first); err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	second := first
	second.FullName = "Someone Else"
	stored, created, err := svc.Create(ctx, aliID, second)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatalf("expected second create to report existing record")
	}
	if stored.FullName != "Ali" {
		t.Fatalf("expected first accepted version, got %q", stored.FullName)
	}

	all, _ := svc.repo.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(all))
	}
}

func TestCreateRejectsOtherOwner(t *testing.T) {
	svc := NewService(NewMemoryRepository(), Options{})
	_, _, err := svc.Create(context.Background(), samiID, sampleProfile(aliID, "Ali", ""))
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), Options{})
	p := sampleProfile(aliID, "", "")
	p.DateOfBirth = "17/05/1990"

	_, _, err := svc.Create(context.Background(), aliID, p)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"full_name", "date_of_birth"} {
		if _, ok := appErr.Fields[field]; !ok {
			t.Fatalf("expected field error for %s, got %v", field, appErr.Fields)
		}
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc := NewService(NewMemoryRepository(), Options{})
	ctx := context.Background()

	p := sampleProfile(aliID, "Ali", "electrician")
	if _, err := svc.Update(ctx, aliID, p); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not_found before create, got %v", err)
	}
	if _, _, err := svc.Create(ctx, aliID, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	p.ServiceDescription = "electrician and solar panels"
	p.PortfolioPhotos = []string{"http://localhost/media/portfolio/a.jpg"}
	if _, err := svc.Update(ctx, aliID, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := svc.Get(ctx, aliID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ServiceDescription != p.ServiceDescription || len(got.PortfolioPhotos) != 1 {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := svc.Delete(ctx, samiID, aliID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized delete, got %v", err)
	}
	if err := svc.Delete(ctx, aliID, aliID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, aliID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not_found after delete, got %v", err)
	}
}

func TestSearchRanksByDescription(t *testing.T) {
	svc := NewService(NewMemoryRepository(), Options{})
	ctx := context.Background()
	seed := []Profile{
		sampleProfile(aliID, "Ali", "plumbing repair and pipe installation"),
		sampleProfile(samiID, "Sami", "home painting and wall repair"),
		sampleProfile("9d3f5e1a-0c4f-4a8d-9e3c-2f4a5b6c7d8e", "Huda", "english tutoring"),
	}
	for _, p := range seed {
		if _, _, err := svc.Create(ctx, p.ProfileID, p); err != nil {
			t.Fatalf("seed %s: %v", p.FullName, err)
		}
	}

	results, err := svc.Search(ctx, SearchQuery{Query: "pipe repair"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %+v", results)
	}
	if results[0].ProfileID != aliID {
		t.Fatalf("expected plumber first, got %s", results[0].FullName)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatalf("results not ordered by similarity")
	}

	limited, err := svc.Search(ctx, SearchQuery{Query: "pipe repair", TopK: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected top_k to cap results, got %v %v", limited, err)
	}

	none, err := svc.Search(ctx, SearchQuery{Query: "pipe repair", SearchArea: "Malki"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected area filter to exclude all, got %v %v", none, err)
	}

	if _, err := svc.Search(ctx, SearchQuery{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected empty query to fail validation, got %v", err)
	}
}
