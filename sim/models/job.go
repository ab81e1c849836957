package models

import "fmt"

// Job is the unit of work exchanged by the GPT models.
type Job struct {
	ID        string
	Size      float64 // service demand, in time units at rate 1
	CreatedAt float64
}

func (j Job) String() string {
	return fmt.Sprintf("job(%s, size=%.3f, t=%.3f)", j.ID, j.Size, j.CreatedAt)
}
