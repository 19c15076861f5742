package scoringdb

import "errors"

// ErrScoresExist indicates a round already has stored scores.
var ErrScoresExist = errors.New("round scores already exist")
