package history

// ResultRecord is a formatted search result: the answer-relevant stored
// fields plus the hit's relevance score.
type ResultRecord struct {
	question      string
	userEquation  string
	userAnswer    float64
	correctAnswer float64
	isCorrect     bool
	category      string
	timestamp     string
	score         float64
}

// ResultFromHit extracts a ResultRecord from a search hit.
func ResultFromHit(hit Hit) ResultRecord {
	fields := hit.Fields()
	return ResultRecord{
		question:      StringField(fields, FieldQuestion),
		userEquation:  StringField(fields, FieldUserEquation),
		userAnswer:    FloatField(fields, FieldUserAnswer),
		correctAnswer: FloatField(fields, FieldCorrectAnswer),
		isCorrect:     BoolField(fields, FieldIsCorrect),
		category:      StringField(fields, FieldCategory),
		timestamp:     StringField(fields, FieldTimestamp),
		score:         hit.Score(),
	}
}

// Question returns the stored question text.
func (r ResultRecord) Question() string { return r.question }

// UserEquation returns the stored user expression.
func (r ResultRecord) UserEquation() string { return r.userEquation }

// UserAnswer returns the stored user answer.
func (r ResultRecord) UserAnswer() float64 { return r.userAnswer }

// CorrectAnswer returns the stored expected answer.
func (r ResultRecord) CorrectAnswer() float64 { return r.correctAnswer }

// IsCorrect returns whether the stored attempt was correct.
func (r ResultRecord) IsCorrect() bool { return r.isCorrect }

// Category returns the stored taxonomy tag.
func (r ResultRecord) Category() string { return r.category }

// Timestamp returns the stored timestamp string.
func (r ResultRecord) Timestamp() string { return r.timestamp }

// Score returns the hit's relevance score.
func (r ResultRecord) Score() float64 { return r.score }

// StringField returns the named document field as a string, or "" when the
// field is absent or not a string.
func StringField(fields Document, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// FloatField returns the named document field as a float64, tolerating the
// numeric types different drivers decode into.
func FloatField(fields Document, name string) float64 {
	switch v := fields[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// BoolField returns the named document field as a bool. Relational drivers
// may decode BOOLEAN columns as integers.
func BoolField(fields Document, name string) bool {
	switch v := fields[name].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
