package util

import "errors"

var ErrArtifactNotReady = errors.New("pdf artifact is not available")
