package service

import (
	"errors"
	"testing"

	"family-tasks/internal/model"
)

func TestResolveVisibilityCommon(t *testing.T) {
	for _, raw := range []string{"common", ""} {
		got, err := ResolveVisibility(raw, model.RoleHusband)
		if err != nil {
			t.Fatalf("ResolveVisibility(%q) error: %v", raw, err)
		}
		if got != model.VisibilityCommon {
			t.Errorf("ResolveVisibility(%q) = %q, want %q", raw, got, model.VisibilityCommon)
		}
	}
}

func TestResolvePrivateUsesActingRole(t *testing.T) {
	got, err := ResolveVisibility("private", model.RoleHusband)
	if err != nil {
		t.Fatalf("ResolveVisibility error: %v", err)
	}
	if got != model.VisibilityHusband {
		t.Errorf("husband private = %q, want %q", got, model.VisibilityHusband)
	}

	got, err = ResolveVisibility("private", model.RoleWife)
	if err != nil {
		t.Fatalf("ResolveVisibility error: %v", err)
	}
	if got != model.VisibilityWife {
		t.Errorf("wife private = %q, want %q", got, model.VisibilityWife)
	}
}

func TestResolvePrivateWithoutRole(t *testing.T) {
	if _, err := ResolveVisibility("private", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestResolveUnknownValue(t *testing.T) {
	if _, err := ResolveVisibility("secret", model.RoleWife); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCanViewPrivate(t *testing.T) {
	task := &model.Task{Visibility: model.VisibilityHusband}
	if !CanView(model.RoleHusband, task) {
		t.Error("husband should see a husband-private task")
	}
	if CanView(model.RoleWife, task) {
		t.Error("wife should not see a husband-private task")
	}
}

func TestCanViewCommon(t *testing.T) {
	task := &model.Task{Visibility: model.VisibilityCommon}
	if !CanView(model.RoleHusband, task) || !CanView(model.RoleWife, task) {
		t.Error("both roles should see a common task")
	}
}

func TestListVisibleFiltersAndKeepsOrder(t *testing.T) {
	tasks := []model.Task{
		{ID: 3, Visibility: model.VisibilityCommon},
		{ID: 2, Visibility: model.VisibilityWife},
		{ID: 1, Visibility: model.VisibilityHusband},
	}

	visible := ListVisible(model.RoleWife, tasks)
	if len(visible) != 2 {
		t.Fatalf("len(visible) = %d, want 2", len(visible))
	}
	if visible[0].ID != 3 || visible[1].ID != 2 {
		t.Errorf("visible order = [%d %d], want [3 2]", visible[0].ID, visible[1].ID)
	}
}
