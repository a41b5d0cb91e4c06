package gormstore

import (
	"errors"
	"sync"
	"testing"

	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func TestTranslate(t *testing.T) {
	boom := errors.New("connection reset")
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"not found", gorm.ErrRecordNotFound, store.ErrNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, store.ErrDuplicateID},
		{"other", boom, boom},
	}

	for _, test := range tests {
		got := translate("op", test.err)
		if !errors.Is(got, test.target) {
			t.Errorf("%s: expected %v in chain, got %v", test.name, test.target, got)
		}
	}
}

func TestConflictOnDuplicate(t *testing.T) {
	if err := conflictOnDuplicate("append", gorm.ErrDuplicatedKey); !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("expected version conflict, got %v", err)
	}
	if err := conflictOnDuplicate("append", gorm.ErrInvalidData); errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("unexpected version conflict for %v", err)
	}
}

func TestSaveColumnsExcludeImmutableFields(t *testing.T) {
	for _, col := range saveColumns {
		switch col {
		case "complaint_id", "seq", "citizen_email", "citizen_name", "created_at", "description", "category":
			t.Errorf("column %s must not be rewritten by Save", col)
		}
	}
}

func TestSaveKeepsOperationUpdatedAt(t *testing.T) {
	sch, err := schema.Parse(&models.Complaint{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	field := sch.LookUpField("updated_at")
	if field == nil {
		t.Fatal("complaints must have an updated_at column")
	}
	if field.AutoUpdateTime != 0 {
		t.Errorf("updated_at must come from the lifecycle operation, gorm would overwrite it (AutoUpdateTime=%v)", field.AutoUpdateTime)
	}

	found := false
	for _, col := range saveColumns {
		found = found || col == "updated_at"
	}
	if !found {
		t.Error("Save must write updated_at")
	}
}
