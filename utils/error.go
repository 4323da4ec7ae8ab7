package utils

import "errors"

// ErrorRecordNotFound is the lookup-miss error the model getters return so
// callers never have to import gorm to classify a miss.
var ErrorRecordNotFound = errors.New("record not found")
