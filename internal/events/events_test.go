package events

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/wallpanels/internal/tiling"
)

func TestPublisher_SendsJSONKeyedByJob(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, NewConfig())
	prod.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != TypeCompleted || ev.JobID != "job-1" || ev.NumPanels != 3 {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		if ev.Layout.PanelWidth != 50 || ev.TS.IsZero() {
			return fmt.Errorf("layout/ts not carried: %+v", ev)
		}
		return nil
	})
	prod.ExpectInputAndSucceed()

	p := NewWithProducer(prod, "panel-generations", 4, nil)
	p.Publish(Event{
		Type:      TypeCompleted,
		JobID:     "job-1",
		NumPanels: 3,
		Layout:    tiling.LayoutSpec{WallWidth: 120, WallHeight: 96, PanelWidth: 50, DPI: 150, Overlap: 2},
	})
	p.Publish(Event{Type: TypeReleased, JobID: "job-1"})

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_ProducerErrorsAreDrained(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, NewConfig())
	prod.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := NewWithProducer(prod, "panel-generations", 4, nil)
	p.Publish(Event{Type: TypeCompleted, JobID: "job-2"})

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNoop(t *testing.T) {
	var p Interface = Noop{}
	p.Publish(Event{Type: TypeCompleted})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
