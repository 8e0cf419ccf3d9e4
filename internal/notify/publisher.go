package notify

import (
	"encoding/json"
	"log/slog"

	"github.com/vaanilabs/vaachak/internal/bus"
	"github.com/vaanilabs/vaachak/internal/job"
	"github.com/vaanilabs/vaachak/internal/protocol"
)

// Publisher mirrors job progress onto the bus. A nil Publisher is a valid
// no-op, so the orchestrator never needs to know whether a bus is wired.
type Publisher struct {
	client *bus.Client
	log    *slog.Logger
}

func NewPublisher(client *bus.Client, log *slog.Logger) *Publisher {
	return &Publisher{client: client, log: log.With(slog.String("component", "notify"))}
}

// Progress publishes an in-flight snapshot. Publish failures are logged and
// dropped; progress mirroring must never stall generation.
func (p *Publisher) Progress(snapshot job.Snapshot) {
	p.publish(protocol.SubjectJobProgress, protocol.FromSnapshot(snapshot))
}

// Done publishes the terminal snapshot.
func (p *Publisher) Done(snapshot job.Snapshot) {
	p.publish(protocol.SubjectJobDone, protocol.FromSnapshot(snapshot))
}

// ExportWritten announces a finished export file.
func (p *Publisher) ExportWritten(msg protocol.ExportWritten) {
	p.publish(protocol.SubjectExportWritten, msg)
}

func (p *Publisher) publish(subject string, msg any) {
	if p == nil || p.client == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("marshal bus message", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := p.client.Publish(subject, data); err != nil {
		p.log.Warn("publish bus message", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
