package mapper

import (
	"database/sql"
	"fmt"
	"time"
)

type cityRow struct {
	ID      int64  `db:"id"`
	ZipCode string `db:"zip_code"`
	Name    string `db:"name"`
}

type typeRow struct {
	ID          int64  `db:"id"`
	Label       string `db:"label"`
	Description string `db:"description"`
}

type criteriaRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

// restaurantRow is a restaurant joined with its type and city.
type restaurantRow struct {
	ID              int64  `db:"id"`
	Name            string `db:"name"`
	Description     string `db:"description"`
	Website         string `db:"website"`
	Street          string `db:"street"`
	CityID          int64  `db:"city_id"`
	CityZipCode     string `db:"city_zip_code"`
	CityName        string `db:"city_name"`
	TypeID          int64  `db:"type_id"`
	TypeLabel       string `db:"type_label"`
	TypeDescription string `db:"type_description"`
}

type basicRow struct {
	ID           int64  `db:"id"`
	VisitDate    dbTime `db:"visit_date"`
	Liked        bool   `db:"liked"`
	IPAddress    string `db:"ip_address"`
	RestaurantID int64  `db:"restaurant_id"`
}

// completeRow is one complete evaluation left-joined with at most one grade
// and its criteria. Grade columns are null for an evaluation without grades.
type completeRow struct {
	ID                  int64          `db:"id"`
	VisitDate           dbTime         `db:"visit_date"`
	Comment             string         `db:"comment"`
	Username            string         `db:"username"`
	RestaurantID        int64          `db:"restaurant_id"`
	GradeID             sql.NullInt64  `db:"grade_id"`
	Score               sql.NullInt64  `db:"score"`
	CriteriaID          sql.NullInt64  `db:"criteria_id"`
	CriteriaName        sql.NullString `db:"criteria_name"`
	CriteriaDescription sql.NullString `db:"criteria_description"`
}

type gradeRow struct {
	ID                  int64  `db:"id"`
	Score               int    `db:"score"`
	EvaluationID        int64  `db:"complete_evaluation_id"`
	CriteriaID          int64  `db:"criteria_id"`
	CriteriaName        string `db:"criteria_name"`
	CriteriaDescription string `db:"criteria_description"`
}

// dbTime scans the date representations returned by the supported drivers:
// native time values, or text for SQLite and MySQL without parseTime.
type dbTime struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}
