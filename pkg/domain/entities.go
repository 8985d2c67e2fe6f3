// Package domain defines the restaurant directory entities, the entity type
// tags used for identity tracking, and the error taxonomy shared by the
// persistence layer and its callers.
package domain

import "time"

// EntityType identifies the kind of row an in-memory instance represents.
type EntityType string

// Supported entity type identifiers used as identity map keys and in errors.
const (
	// EntityCity identifies a city row.
	EntityCity EntityType = "city"
	// EntityRestaurantType identifies a restaurant type row.
	EntityRestaurantType EntityType = "restaurant_type"
	// EntityCriteria identifies an evaluation criteria row.
	EntityCriteria EntityType = "evaluation_criteria"
	// EntityBasicEvaluation identifies a like/dislike evaluation row.
	EntityBasicEvaluation EntityType = "basic_evaluation"
	// EntityCompleteEvaluation identifies a graded evaluation row.
	EntityCompleteEvaluation EntityType = "complete_evaluation"
	// EntityGrade identifies a single criteria grade row.
	EntityGrade EntityType = "grade"
	// EntityRestaurant identifies a restaurant row.
	EntityRestaurant EntityType = "restaurant"
)

// Grade score bounds.
const (
	MinScore = 1
	MaxScore = 5
)

// City is referenced by a restaurant address.
type City struct {
	ID      int64
	ZipCode string
	Name    string
}

// RestaurantType classifies restaurants. Labels are unique.
type RestaurantType struct {
	ID          int64
	Label       string
	Description string
}

// Localisation is the address value object embedded in a Restaurant.
type Localisation struct {
	Street string
	City   *City
}

// Restaurant is the aggregate root. It owns its evaluations: deleting a
// restaurant deletes every evaluation and grade attached to it.
type Restaurant struct {
	ID          int64
	Name        string
	Description string
	Website     string
	Address     Localisation
	Type        *RestaurantType
	Evaluations []Evaluation
}

// EvaluationCriteria is a long-lived grading dimension shared by many grades.
type EvaluationCriteria struct {
	ID          int64
	Name        string
	Description string
}

// Grade scores one criteria of a complete evaluation.
type Grade struct {
	ID         int64
	Score      int
	Evaluation *CompleteEvaluation
	Criteria   *EvaluationCriteria
}

// Evaluation is implemented by *BasicEvaluation and *CompleteEvaluation.
type Evaluation interface {
	EvaluationID() int64
	VisitedAt() time.Time
	Owner() *Restaurant
	evaluation()
}

// BasicEvaluation is an anonymous like or dislike.
type BasicEvaluation struct {
	ID         int64
	VisitDate  time.Time
	Like       bool
	IPAddress  string
	Restaurant *Restaurant
}

// CompleteEvaluation is a signed review graded on several criteria.
type CompleteEvaluation struct {
	ID         int64
	VisitDate  time.Time
	Comment    string
	Username   string
	Restaurant *Restaurant
	Grades     []*Grade
}

func (e *BasicEvaluation) EvaluationID() int64  { return e.ID }
func (e *BasicEvaluation) VisitedAt() time.Time { return e.VisitDate }
func (e *BasicEvaluation) Owner() *Restaurant   { return e.Restaurant }
func (e *BasicEvaluation) evaluation()          {}

func (e *CompleteEvaluation) EvaluationID() int64  { return e.ID }
func (e *CompleteEvaluation) VisitedAt() time.Time { return e.VisitDate }
func (e *CompleteEvaluation) Owner() *Restaurant   { return e.Restaurant }
func (e *CompleteEvaluation) evaluation()          {}

// TotalScore sums the scores of all grades.
func (e *CompleteEvaluation) TotalScore() int {
	total := 0
	for _, g := range e.Grades {
		if g != nil {
			total += g.Score
		}
	}
	return total
}

// GradeFor returns the grade recorded for criteriaID, if any.
func (e *CompleteEvaluation) GradeFor(criteriaID int64) (*Grade, bool) {
	for _, g := range e.Grades {
		if g != nil && g.Criteria != nil && g.Criteria.ID == criteriaID {
			return g, true
		}
	}
	return nil, false
}

// BasicEvaluations returns the like/dislike evaluations in collection order.
func (r *Restaurant) BasicEvaluations() []*BasicEvaluation {
	var out []*BasicEvaluation
	for _, e := range r.Evaluations {
		if b, ok := e.(*BasicEvaluation); ok {
			out = append(out, b)
		}
	}
	return out
}

// CompleteEvaluations returns the graded evaluations in collection order.
func (r *Restaurant) CompleteEvaluations() []*CompleteEvaluation {
	var out []*CompleteEvaluation
	for _, e := range r.Evaluations {
		if c, ok := e.(*CompleteEvaluation); ok {
			out = append(out, c)
		}
	}
	return out
}

// CountLikes counts basic evaluations whose verdict equals like.
func (r *Restaurant) CountLikes(like bool) int {
	n := 0
	for _, b := range r.BasicEvaluations() {
		if b.Like == like {
			n++
		}
	}
	return n
}

// CityName is a nil-safe accessor for the address city name.
func (r *Restaurant) CityName() string {
	if r.Address.City == nil {
		return ""
	}
	return r.Address.City.Name
}
