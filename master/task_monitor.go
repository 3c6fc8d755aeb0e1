// Copyright 2025 placerec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package master

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/placerec/placerec/engine"
)

const (
	TaskStatusPending  = "Pending"
	TaskStatusComplete = "Complete"
	TaskStatusRunning  = "Running"
	TaskStatusFailed   = "Failed"

	TaskLoadDataset   = "Load dataset"
	TaskCollaborative = "Build collaborative filtering data"
	TaskItemProfiles  = "Build item profiles"
	TaskPopularity    = "Rank popular places"
	TaskGenerateBatch = "Generate batch recommendations"
)

var _ engine.Progress = (*TaskTracker)(nil)

// RebuildSteps lists the steps of a global rebuild in order.
var RebuildSteps = []string{TaskLoadDataset, TaskCollaborative, TaskItemProfiles, TaskPopularity}

// Task progress information.
type Task struct {
	Name       string
	Status     string
	Done       int
	Total      int
	Error      string
	StartTime  time.Time
	FinishTime time.Time
}

// Tracker reports the progress of a task.
type Tracker interface {
	Start(total int)
	Update(done int)
	Finish()
	Fail(err error)
}

// TaskMonitor monitors the progress of the steps run by this process.
type TaskMonitor struct {
	TaskLock sync.Mutex
	Tasks    map[string]*Task
}

// NewTaskMonitor creates a TaskMonitor with every rebuild step pending.
func NewTaskMonitor() *TaskMonitor {
	tasks := make(map[string]*Task)
	for _, name := range RebuildSteps {
		tasks[name] = &Task{
			Name:   name,
			Status: TaskStatusPending,
		}
	}
	return &TaskMonitor{Tasks: tasks}
}

// Start a task.
func (tm *TaskMonitor) Start(name string, total int) {
	tm.TaskLock.Lock()
	defer tm.TaskLock.Unlock()
	task, exist := tm.Tasks[name]
	if !exist {
		task = &Task{}
		tm.Tasks[name] = task
	}
	*task = Task{
		Name:      name,
		Status:    TaskStatusRunning,
		Total:     total,
		StartTime: time.Now(),
	}
}

// Finish a task.
func (tm *TaskMonitor) Finish(name string) {
	tm.TaskLock.Lock()
	defer tm.TaskLock.Unlock()
	if task, exist := tm.Tasks[name]; exist {
		task.Status = TaskStatusComplete
		task.Done = task.Total
		task.FinishTime = time.Now()
	}
}

// Fail a task. The progress is kept.
func (tm *TaskMonitor) Fail(name string, err error) {
	tm.TaskLock.Lock()
	defer tm.TaskLock.Unlock()
	if task, exist := tm.Tasks[name]; exist {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		task.FinishTime = time.Now()
	}
}

// Update the progress of a task.
func (tm *TaskMonitor) Update(name string, done int) {
	tm.TaskLock.Lock()
	defer tm.TaskLock.Unlock()
	if task, exist := tm.Tasks[name]; exist {
		task.Done = done
	}
}

// List all tasks. Started tasks come first in order of start time, followed by
// pending tasks in order of name.
func (tm *TaskMonitor) List() []Task {
	tm.TaskLock.Lock()
	defer tm.TaskLock.Unlock()
	tasks := make([]Task, 0, len(tm.Tasks))
	for _, t := range tm.Tasks {
		tasks = append(tasks, *t)
	}
	slices.SortFunc(tasks, func(a, b Task) int {
		aPending, bPending := a.Status == TaskStatusPending, b.Status == TaskStatusPending
		switch {
		case !aPending && bPending:
			return -1
		case aPending && !bPending:
			return 1
		case aPending && bPending:
			return cmp.Compare(a.Name, b.Name)
		default:
			return a.StartTime.Compare(b.StartTime)
		}
	})
	return tasks
}

// TaskTracker tracks the progress of a task.
type TaskTracker struct {
	Name    string
	Monitor *TaskMonitor
}

// NewTaskTracker creates a TaskTracker from TaskMonitor.
func (tm *TaskMonitor) NewTaskTracker(name string) *TaskTracker {
	return &TaskTracker{
		Name:    name,
		Monitor: tm,
	}
}

func (tt *TaskTracker) Start(total int) {
	tt.Monitor.Start(tt.Name, total)
}

func (tt *TaskTracker) Update(done int) {
	tt.Monitor.Update(tt.Name, done)
}

func (tt *TaskTracker) Finish() {
	tt.Monitor.Finish(tt.Name)
}

func (tt *TaskTracker) Fail(err error) {
	tt.Monitor.Fail(tt.Name, err)
}
