package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Routing keys this service consumes or publishes.
const (
	RouteProfileUpdated     = "user.profile.updated"
	RouteScholarshipCreated = "scholarship.created"
	RouteScholarshipUpdated = "scholarship.updated"
	RouteScholarshipDeleted = "scholarship.deleted"
	RouteNewMatch           = "scholarship.new.match"
)

// Event is the discriminated union of broker events, one variant per routing
// key. Payloads are parsed and validated at the router boundary before
// dispatch; handlers never see raw maps.
type Event interface {
	RoutingKey() string
}

var validate = validator.New()

// ProfileUpdatedEvent carries a full applicant profile snapshot.
type ProfileUpdatedEvent struct {
	UserID            string     `json:"userId" validate:"required"`
	GPA               *float64   `json:"gpa" validate:"omitempty,gte=0,lte=4"`
	Major             string     `json:"major"`
	University        string     `json:"university"`
	YearOfStudy       *int       `json:"yearOfStudy"`
	Skills            []string   `json:"skills"`
	ResearchInterests []string   `json:"researchInterests"`
	Timestamp         *time.Time `json:"timestamp"`
}

// RoutingKey implements Event.
func (ProfileUpdatedEvent) RoutingKey() string { return RouteProfileUpdated }

// OpportunityPayload is the shared body of scholarship created/updated
// events. Producers send either opportunityId (string) or id (integer); at
// least one is required.
type OpportunityPayload struct {
	OpportunityID   string     `json:"opportunityId"`
	LegacyID        *int64     `json:"id"`
	OpportunityType string     `json:"opportunityType"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	MinGPA          *float64   `json:"minGpa" validate:"omitempty,gte=0,lte=4"`
	RequiredSkills  []string   `json:"requiredSkills"`
	PreferredMajors []string   `json:"preferredMajors"`
	ResearchAreas   []string   `json:"researchAreas"`
	Timestamp       *time.Time `json:"timestamp"`
}

// ResolveID returns the opportunity id from whichever field the producer
// populated.
func (p OpportunityPayload) ResolveID() string {
	if p.OpportunityID != "" {
		return p.OpportunityID
	}
	if p.LegacyID != nil {
		return strconv.FormatInt(*p.LegacyID, 10)
	}
	return ""
}

// OpportunityCreatedEvent announces a newly published opportunity.
type OpportunityCreatedEvent struct {
	OpportunityPayload
}

// RoutingKey implements Event.
func (OpportunityCreatedEvent) RoutingKey() string { return RouteScholarshipCreated }

// OpportunityUpdatedEvent carries a full opportunity snapshot after an edit.
type OpportunityUpdatedEvent struct {
	OpportunityPayload
}

// RoutingKey implements Event.
func (OpportunityUpdatedEvent) RoutingKey() string { return RouteScholarshipUpdated }

// OpportunityDeletedEvent marks an opportunity terminal. Feature rows are
// kept; the opportunity transitions to StatusClosed.
type OpportunityDeletedEvent struct {
	OpportunityID string `json:"opportunityId"`
	LegacyID      *int64 `json:"id"`
}

// RoutingKey implements Event.
func (OpportunityDeletedEvent) RoutingKey() string { return RouteScholarshipDeleted }

// ResolveID returns the opportunity id from whichever field was populated.
func (e OpportunityDeletedEvent) ResolveID() string {
	if e.OpportunityID != "" {
		return e.OpportunityID
	}
	if e.LegacyID != nil {
		return strconv.FormatInt(*e.LegacyID, 10)
	}
	return ""
}

// UnrecognizedEvent is returned for routing keys this service has no handler
// for. A missing handler is not an error; producers may emit new event types
// before consumers learn them.
type UnrecognizedEvent struct {
	Key string
}

// RoutingKey implements Event.
func (e UnrecognizedEvent) RoutingKey() string { return e.Key }

// ParseEvent decodes and validates a broker payload by routing key. Unknown
// routing keys yield UnrecognizedEvent with a nil error; malformed or invalid
// payloads yield an error wrapping ErrSchemaInvalid (poison, never retried).
func ParseEvent(routingKey string, body []byte) (Event, error) {
	switch routingKey {
	case RouteProfileUpdated:
		var ev ProfileUpdatedEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case RouteScholarshipCreated:
		var ev OpportunityCreatedEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		if err := checkOpportunityID(ev.OpportunityPayload.ResolveID()); err != nil {
			return nil, err
		}
		ev.OpportunityPayload = withDefaults(ev.OpportunityPayload)
		return ev, nil
	case RouteScholarshipUpdated:
		var ev OpportunityUpdatedEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		if err := checkOpportunityID(ev.OpportunityPayload.ResolveID()); err != nil {
			return nil, err
		}
		ev.OpportunityPayload = withDefaults(ev.OpportunityPayload)
		return ev, nil
	case RouteScholarshipDeleted:
		var ev OpportunityDeletedEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		if err := checkOpportunityID(ev.ResolveID()); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return UnrecognizedEvent{Key: routingKey}, nil
	}
}

func decode(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("op=events.decode: %w: %v", ErrSchemaInvalid, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("op=events.validate: %w: %v", ErrSchemaInvalid, err)
	}
	return nil
}

func checkOpportunityID(id string) error {
	if id == "" {
		return fmt.Errorf("op=events.validate: %w: opportunityId or id required", ErrSchemaInvalid)
	}
	return nil
}

func withDefaults(p OpportunityPayload) OpportunityPayload {
	if p.OpportunityType == "" {
		p.OpportunityType = OpportunityTypeScholarship
	}
	return p
}
