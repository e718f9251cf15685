package component

import (
	"context"
	"fmt"
	"reflect"
	"testing"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
}

func (f *fakeComponent) Name() string { return f.name }
func (f *fakeComponent) Start(context.Context) error {
	*f.events = append(*f.events, "start "+f.name)
	return f.startErr
}
func (f *fakeComponent) Stop(context.Context) error {
	*f.events = append(*f.events, "stop "+f.name)
	return f.stopErr
}
func (f *fakeComponent) Health(context.Context) Health { return f.health }

func TestRegistry_Lifecycle(t *testing.T) {
	var events []string
	r := NewRegistry()
	for _, name := range []string{"sidecar", "queue", "server"} {
		if err := r.Register(&fakeComponent{name: name, events: &events}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"start sidecar", "start queue", "start server",
		"stop server", "stop queue", "stop sidecar",
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("expected %v, got %v", want, events)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	var events []string
	r := NewRegistry()
	_ = r.Register(&fakeComponent{name: "redis", events: &events})
	if err := r.Register(&fakeComponent{name: "redis", events: &events}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 component, got %d", r.Len())
	}
}

func TestRegistry_StartFailureStopsOnlyStarted(t *testing.T) {
	var events []string
	r := NewRegistry()
	_ = r.Register(&fakeComponent{name: "redis", events: &events})
	_ = r.Register(&fakeComponent{name: "kafka", events: &events, startErr: fmt.Errorf("no brokers")})
	_ = r.Register(&fakeComponent{name: "server", events: &events})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	_ = r.StopAll(context.Background())

	want := []string{"start redis", "start kafka", "stop redis"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("expected %v, got %v", want, events)
	}
}

func TestRegistry_StopErrors(t *testing.T) {
	var events []string
	r := NewRegistry()
	_ = r.Register(&fakeComponent{name: "redis", events: &events, stopErr: fmt.Errorf("stuck")})
	_ = r.StartAll(context.Background())
	if err := r.StopAll(context.Background()); err == nil {
		t.Error("expected error from StopAll")
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		statuses []HealthStatus
		want     HealthStatus
	}{
		{nil, StatusHealthy},
		{[]HealthStatus{StatusHealthy, StatusHealthy}, StatusHealthy},
		{[]HealthStatus{StatusHealthy, StatusDegraded}, StatusDegraded},
		{[]HealthStatus{StatusUnhealthy, StatusDegraded}, StatusUnhealthy},
		{[]HealthStatus{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		var events []string
		r := NewRegistry()
		for i, s := range tt.statuses {
			name := fmt.Sprintf("c%d", i)
			_ = r.Register(&fakeComponent{name: name, events: &events, health: Health{Name: name, Status: s}})
		}
		if got := Overall(r.HealthAll(context.Background())); got != tt.want {
			t.Errorf("%v: expected %s, got %s", tt.statuses, tt.want, got)
		}
	}
}
