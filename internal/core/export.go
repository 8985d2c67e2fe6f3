package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"guideresto/internal/blob"
	"guideresto/internal/mapper"
	"guideresto/pkg/domain"
)

// ExportContentType is the content type of exported restaurant documents.
const ExportContentType = "application/json"

// RestaurantDocument is the exported form of an aggregate. Evaluations carry
// no back-reference, so the document is a tree.
type RestaurantDocument struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Website     string               `json:"website,omitempty"`
	Street      string               `json:"street,omitempty"`
	City        CityDocument         `json:"city"`
	Type        TypeDocument         `json:"type"`
	Likes       int                  `json:"likes"`
	Dislikes    int                  `json:"dislikes"`
	Evaluations []EvaluationDocument `json:"evaluations"`
	ExportedAt  time.Time            `json:"exported_at"`
}

type CityDocument struct {
	ID      int64  `json:"id"`
	ZipCode string `json:"zip_code"`
	Name    string `json:"name"`
}

type TypeDocument struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// EvaluationDocument is tagged by Kind: "basic" or "complete".
type EvaluationDocument struct {
	Kind       string          `json:"kind"`
	ID         int64           `json:"id"`
	VisitDate  time.Time       `json:"visit_date"`
	Like       *bool           `json:"like,omitempty"`
	Comment    string          `json:"comment,omitempty"`
	Username   string          `json:"username,omitempty"`
	TotalScore int             `json:"total_score,omitempty"`
	Grades     []GradeDocument `json:"grades,omitempty"`
}

type GradeDocument struct {
	ID       int64  `json:"id"`
	Criteria string `json:"criteria"`
	Score    int    `json:"score"`
}

// NewRestaurantDocument projects r at the given time.
func NewRestaurantDocument(r *domain.Restaurant, at time.Time) RestaurantDocument {
	doc := RestaurantDocument{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Website:     r.Website,
		Street:      r.Address.Street,
		Likes:       r.CountLikes(true),
		Dislikes:    r.CountLikes(false),
		Evaluations: make([]EvaluationDocument, 0, len(r.Evaluations)),
		ExportedAt:  at.UTC(),
	}
	if c := r.Address.City; c != nil {
		doc.City = CityDocument{ID: c.ID, ZipCode: c.ZipCode, Name: c.Name}
	}
	if t := r.Type; t != nil {
		doc.Type = TypeDocument{ID: t.ID, Label: t.Label}
	}
	for _, ev := range r.Evaluations {
		switch e := ev.(type) {
		case *domain.BasicEvaluation:
			like := e.Like
			doc.Evaluations = append(doc.Evaluations, EvaluationDocument{
				Kind: "basic", ID: e.ID, VisitDate: e.VisitDate.UTC(), Like: &like,
			})
		case *domain.CompleteEvaluation:
			out := EvaluationDocument{
				Kind:       "complete",
				ID:         e.ID,
				VisitDate:  e.VisitDate.UTC(),
				Comment:    e.Comment,
				Username:   e.Username,
				TotalScore: e.TotalScore(),
			}
			for _, g := range e.Grades {
				gd := GradeDocument{ID: g.ID, Score: g.Score}
				if g.Criteria != nil {
					gd.Criteria = g.Criteria.Name
				}
				out.Grades = append(out.Grades, gd)
			}
			doc.Evaluations = append(doc.Evaluations, out)
		}
	}
	return doc
}

// ExportKey is the blob key of an export of restaurant id taken at at.
func ExportKey(id int64, at time.Time) string {
	return "restaurants/" + strconv.FormatInt(id, 10) + "/" + strconv.FormatInt(at.UnixNano(), 10) + ".json"
}

// ExportRestaurant loads restaurant id and writes its document to store.
func (s *Service) ExportRestaurant(ctx context.Context, id int64, store blob.Store) (blob.Info, error) {
	var info blob.Info
	err := s.scoped(ctx, "export_restaurant", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		if store == nil {
			return id, fmt.Errorf("export restaurant %d: no blob store", id)
		}
		r, err := sc.Aggregates().Load(ctx, id)
		if err != nil {
			return id, err
		}
		at := s.now()
		payload, err := json.MarshalIndent(NewRestaurantDocument(r, at), "", "  ")
		if err != nil {
			return id, fmt.Errorf("encode restaurant %d: %w", id, err)
		}
		info, err = store.Put(ctx, ExportKey(id, at), bytes.NewReader(payload), blob.PutOptions{
			ContentType: ExportContentType,
			Metadata:    map[string]string{"restaurant_id": strconv.FormatInt(id, 10)},
		})
		if err != nil {
			return id, fmt.Errorf("store export of restaurant %d: %w", id, err)
		}
		return id, nil
	})
	return info, err
}
