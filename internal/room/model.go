package room

import "time"

type Category string

const (
	CategoryStudy   Category = "study"
	CategoryEvent   Category = "event"
	CategoryGeneral Category = "general"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryStudy, CategoryEvent, CategoryGeneral:
		return true
	}
	return false
}

type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	AdminID     int64     `json:"admin_id"`
	MemberIDs   []int64   `json:"member_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// defaultRooms are created on first boot, owned by the bootstrap admin.
var defaultRooms = []CreateRequest{
	{Name: "Computer Science Study", Description: "Discussion group for Computer Science students", Category: CategoryStudy},
	{Name: "Engineering Study", Description: "Discussion group for Engineering students", Category: CategoryStudy},
	{Name: "College Events", Description: "Information about upcoming college events", Category: CategoryEvent},
	{Name: "Mathematics Study", Description: "Discussion group for Mathematics students", Category: CategoryStudy},
	{Name: "Student Activities", Description: "Planning and discussion for student activities", Category: CategoryEvent},
}
