// Package checklist tracks analysis work as a three-level dependency
// graph: file items carry no dependencies, goal items depend on every file
// item, and batch items depend on the file items of their batch.
package checklist

import (
	"fmt"
	"path/filepath"
	"strings"

	"cab/internal/batching"
	"cab/internal/errors"
)

// Status is the lifecycle state of a checklist item.
type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
	Failed     Status = "failed"
	Skipped    Status = "skipped"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case Pending, InProgress, Completed, Failed, Skipped:
		return Status(strings.ToLower(s)), nil
	default:
		return "", errors.NewInvalidArgument(
			"unknown status " + s + "; use pending, in_progress, completed, failed, or skipped")
	}
}

// Kind is the level of a checklist item.
type Kind string

const (
	KindFile  Kind = "file"
	KindGoal  Kind = "goal"
	KindBatch Kind = "batch"
)

// Item is one trackable unit of work.
type Item struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	Description  string            `json:"description"`
	Status       Status            `json:"status"`
	DependsOn    []string          `json:"dependsOn,omitempty"`
	RetryCount   int               `json:"retryCount"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Checklist is an ordered item list with id lookup. Creation order is the
// scheduling contract: NextReady scans items in this order.
type Checklist struct {
	Items []*Item `json:"items"`

	byID map[string]*Item
}

// Build creates the checklist for a batch set: one file item per
// (batch, file) pair, one goal item per analysis goal depending on all file
// items, one batch item per batch depending on that batch's file items.
func Build(batches []batching.Batch, goals []string) *Checklist {
	cl := &Checklist{byID: make(map[string]*Item)}
	counter := 0

	var fileIDs []string
	fileIDsByBatch := make(map[string][]string)

	for _, batch := range batches {
		for _, path := range batch.Files {
			item := &Item{
				ID:          fmt.Sprintf("file_%04d", counter),
				Kind:        KindFile,
				Description: fmt.Sprintf("Process file: %s", filepath.Base(path)),
				Status:      Pending,
				Metadata: map[string]string{
					"file_path": path,
					"batch_id":  batch.ID,
					"language":  batch.LanguageGroup,
					"directory": batch.DirectoryGroup,
				},
			}
			cl.append(item)
			fileIDs = append(fileIDs, item.ID)
			fileIDsByBatch[batch.ID] = append(fileIDsByBatch[batch.ID], item.ID)
			counter++
		}
	}

	for _, goal := range goals {
		item := &Item{
			ID:          fmt.Sprintf("goal_%04d", counter),
			Kind:        KindGoal,
			Description: fmt.Sprintf("Analysis goal: %s", goal),
			Status:      Pending,
			DependsOn:   append([]string(nil), fileIDs...),
			Metadata:    map[string]string{"analysis_goal": goal},
		}
		cl.append(item)
		counter++
	}

	for _, batch := range batches {
		item := &Item{
			ID:          fmt.Sprintf("batch_%04d", counter),
			Kind:        KindBatch,
			Description: fmt.Sprintf("Complete batch: %s", batch.ID),
			Status:      Pending,
			DependsOn:   append([]string(nil), fileIDsByBatch[batch.ID]...),
			Metadata:    map[string]string{"batch_id": batch.ID},
		}
		cl.append(item)
		counter++
	}

	return cl
}

// Rebuild restores the id index after deserialization.
func Rebuild(items []*Item) *Checklist {
	cl := &Checklist{byID: make(map[string]*Item, len(items))}
	for _, item := range items {
		cl.append(item)
	}
	return cl
}

func (c *Checklist) append(item *Item) {
	c.Items = append(c.Items, item)
	c.byID[item.ID] = item
}

// Get returns the item with the given id, or nil.
func (c *Checklist) Get(id string) *Item {
	return c.byID[id]
}

// NextReady returns up to limit pending items whose dependencies are all
// completed, in creation order. File items therefore always surface before
// the goal and batch items that depend on them. A dependency id that
// resolves to no item counts as unmet.
func (c *Checklist) NextReady(limit int) []*Item {
	if limit <= 0 {
		limit = len(c.Items)
	}

	var ready []*Item
	for _, item := range c.Items {
		if item.Status != Pending {
			continue
		}
		if !c.dependenciesMet(item) {
			continue
		}
		ready = append(ready, item)
		if len(ready) >= limit {
			break
		}
	}
	return ready
}

func (c *Checklist) dependenciesMet(item *Item) bool {
	for _, depID := range item.DependsOn {
		dep := c.byID[depID]
		if dep == nil || dep.Status != Completed {
			return false
		}
	}
	return true
}

// UpdateStatus transitions an item. It reports false for an unknown id. A
// FAILED transition increments the retry counter and records the message;
// retries themselves are the caller's responsibility.
func (c *Checklist) UpdateStatus(id string, status Status, errorMessage string) bool {
	item := c.byID[id]
	if item == nil {
		return false
	}

	item.Status = status
	if errorMessage != "" {
		item.ErrorMessage = errorMessage
	}
	if status == Failed {
		item.RetryCount++
	}
	return true
}

// KindStats is per-kind completion progress.
type KindStats struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Percent   float64 `json:"percent"`
}

// FailedItem surfaces a failed item with its recorded error.
type FailedItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
	RetryCount  int    `json:"retryCount"`
}

// ProgressSummary aggregates checklist state.
type ProgressSummary struct {
	TotalItems     int                `json:"totalItems"`
	StatusCounts   map[Status]int     `json:"statusCounts"`
	OverallPercent float64            `json:"overallPercent"`
	KindProgress   map[Kind]KindStats `json:"kindProgress"`
	FailedItems    []FailedItem       `json:"failedItems,omitempty"`
}

// Progress computes the current summary.
func (c *Checklist) Progress() ProgressSummary {
	summary := ProgressSummary{
		TotalItems:   len(c.Items),
		StatusCounts: map[Status]int{Pending: 0, InProgress: 0, Completed: 0, Failed: 0, Skipped: 0},
		KindProgress: make(map[Kind]KindStats),
	}

	for _, kind := range []Kind{KindFile, KindGoal, KindBatch} {
		summary.KindProgress[kind] = KindStats{}
	}

	for _, item := range c.Items {
		summary.StatusCounts[item.Status]++

		stats := summary.KindProgress[item.Kind]
		stats.Total++
		if item.Status == Completed {
			stats.Completed++
		}
		summary.KindProgress[item.Kind] = stats

		if item.Status == Failed {
			summary.FailedItems = append(summary.FailedItems, FailedItem{
				ID:          item.ID,
				Description: item.Description,
				Error:       item.ErrorMessage,
				RetryCount:  item.RetryCount,
			})
		}
	}

	if summary.TotalItems > 0 {
		summary.OverallPercent = float64(summary.StatusCounts[Completed]) / float64(summary.TotalItems) * 100
	}
	for kind, stats := range summary.KindProgress {
		if stats.Total > 0 {
			stats.Percent = float64(stats.Completed) / float64(stats.Total) * 100
			summary.KindProgress[kind] = stats
		}
	}
	return summary
}
