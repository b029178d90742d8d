package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorLockNotObtained means another worker holds the tenant or task lock.
var ErrorLockNotObtained = errors.New("could not obtain lock")
