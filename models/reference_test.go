package models

import (
	"errors"
	"testing"

	"bitbucket.org/grsnucleo/ocupacional_backend/utils"
	"gorm.io/gorm"
)

func TestLookupErrorTranslatesGormMiss(t *testing.T) {
	err := lookupError(gorm.ErrRecordNotFound)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("lookupError(gorm miss) = %v, want ErrorRecordNotFound", err)
	}
}

func TestLookupErrorKeepsOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	if got := lookupError(boom); got != boom {
		t.Fatalf("lookupError = %v, want the original error", got)
	}
	if errors.Is(lookupError(boom), utils.ErrorRecordNotFound) {
		t.Fatal("unrelated errors must not classify as not-found")
	}
}
