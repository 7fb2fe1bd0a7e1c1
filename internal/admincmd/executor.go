package admincmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"msgsort/internal/metrics"
	"msgsort/internal/services"
	"msgsort/pkg/categorizer"
)

// Document is a file attached to a reply.
type Document struct {
	Name    string
	Data    []byte
	Caption string
}

// Reply is what the caller sends back to the user.
type Reply struct {
	Text     string
	Markdown bool
	Document *Document
}

type Executor struct {
	categories *services.CategoryService
	stats      *services.StatsService
	export     *services.ExportService
	metrics    *metrics.Recorder
	now        func() time.Time
}

func NewExecutor(cs *services.CategoryService, ss *services.StatsService, es *services.ExportService, m *metrics.Recorder) *Executor {
	return &Executor{categories: cs, stats: ss, export: es, metrics: m, now: time.Now}
}

// Handle parses text and executes it. Parse failures become user-facing
// replies as well.
func (e *Executor) Handle(ctx context.Context, text string) Reply {
	cmd, err := Parse(text)
	if err != nil {
		e.metrics.ObserveAdminCommand("invalid", err)
		return parseErrorReply(err)
	}
	return e.Execute(ctx, cmd)
}

func (e *Executor) Execute(ctx context.Context, cmd Command) Reply {
	var (
		reply Reply
		err   error
	)
	switch cmd.Kind {
	case KindAdd:
		reply, err = e.add(ctx, cmd)
	case KindList:
		reply, err = e.list(ctx)
	case KindDelete:
		reply, err = e.delete(ctx, cmd)
	case KindStats:
		reply, err = e.statsReply(ctx)
	case KindExport:
		reply, err = e.exportReply(ctx)
	default:
		reply = helpReply()
	}
	e.metrics.ObserveAdminCommand(string(cmd.Kind), err)
	if err != nil {
		log.WithError(err).WithField("command", cmd.Kind).Warn("Admin command failed")
	}
	return reply
}

func (e *Executor) add(ctx context.Context, cmd Command) (Reply, error) {
	if err := services.ValidateCategoryName(cmd.Name); err != nil {
		return Reply{Text: "❌ Nombre de categoría inválido. Solo letras, números, guiones y guiones bajos."}, err
	}
	if len(categorizer.NormalizeKeywords(cmd.Keywords)) == 0 {
		return Reply{Text: "❌ Debes proporcionar al menos una palabra clave."}, categorizer.ErrInvalidCategory
	}

	cat, err := e.categories.AddCategory(ctx, cmd.Name, cmd.Keywords)
	switch {
	case err == nil:
		return Reply{Text: "✅ Categoría creada exitosamente:\n\n" + FormatCategoryInfo(cat), Markdown: true}, nil
	case errors.Is(err, categorizer.ErrDuplicateCategory):
		return Reply{Text: fmt.Sprintf("❌ La categoría '%s' ya existe. Usa /delete_category primero.", cmd.Name)}, err
	case errors.Is(err, services.ErrReservedCategory):
		return Reply{Text: fmt.Sprintf("❌ '%s' es la categoría por defecto y no se puede crear.", cmd.Name)}, err
	case errors.Is(err, categorizer.ErrInvalidCategory):
		return Reply{Text: "❌ Categoría inválida: " + err.Error()}, err
	default:
		return internalErrorReply(), err
	}
}

func (e *Executor) list(ctx context.Context) (Reply, error) {
	cats, err := e.categories.ListCategories(ctx)
	if err != nil {
		return internalErrorReply(), err
	}
	if len(cats) == 0 {
		return Reply{Text: "📭 No hay categorías configuradas."}, nil
	}
	lines := []string{"📚 *Categorías configuradas:*\n"}
	for _, c := range cats {
		lines = append(lines, FormatCategoryInfo(c), "")
	}
	return Reply{Text: strings.Join(lines, "\n"), Markdown: true}, nil
}

func (e *Executor) delete(ctx context.Context, cmd Command) (Reply, error) {
	err := e.categories.DeleteCategory(ctx, cmd.Name)
	switch {
	case err == nil:
		return Reply{Text: fmt.Sprintf("✅ Categoría '%s' eliminada exitosamente.", cmd.Name)}, nil
	case errors.Is(err, services.ErrReservedCategory):
		return Reply{Text: fmt.Sprintf("❌ No puedes eliminar la categoría por defecto '%s'.", e.categories.DefaultCategory())}, err
	case errors.Is(err, categorizer.ErrCategoryNotFound):
		return Reply{Text: fmt.Sprintf("❌ La categoría '%s' no existe.", cmd.Name)}, err
	default:
		return internalErrorReply(), err
	}
}

func (e *Executor) statsReply(ctx context.Context) (Reply, error) {
	stats, err := e.stats.Stats(ctx)
	if err != nil {
		return internalErrorReply(), err
	}
	if stats.Total == 0 {
		return Reply{Text: "📭 No hay mensajes registrados aún."}, nil
	}
	return Reply{Text: FormatStats(stats), Markdown: true}, nil
}

func (e *Executor) exportReply(ctx context.Context) (Reply, error) {
	cats, err := e.categories.ListCategories(ctx)
	if err != nil {
		return internalErrorReply(), err
	}
	if len(cats) == 0 {
		return Reply{Text: "📭 No hay categorías para exportar."}, nil
	}
	var buf bytes.Buffer
	if err := e.export.Export(ctx, &buf, services.FormatCSV); err != nil {
		return internalErrorReply(), err
	}
	return Reply{Document: &Document{
		Name:    services.ExportFileName(e.now(), services.FormatCSV),
		Data:    buf.Bytes(),
		Caption: "📄 Exportación de categorías",
	}}, nil
}

func helpReply() Reply {
	lines := []string{
		"🤖 Comandos disponibles:",
		Usage(KindAdd) + " (alias /ac)",
		Usage(KindList) + " (alias /lc)",
		Usage(KindDelete) + " (alias /dc)",
		Usage(KindStats) + " (alias /s)",
		Usage(KindExport),
		"",
		"Cualquier otro mensaje de texto se categoriza y se guarda.",
	}
	return Reply{Text: strings.Join(lines, "\n")}
}

func parseErrorReply(err error) Reply {
	switch {
	case errors.Is(err, ErrUsage):
		msg := strings.TrimPrefix(err.Error(), ErrUsage.Error()+": ")
		reply := "❌ Uso: " + msg
		if strings.HasPrefix(msg, "/add_category") {
			reply += "\nEjemplo: /add_category trabajo reunión, meeting, oficina"
		}
		return Reply{Text: reply}
	case errors.Is(err, ErrUnknownCommand):
		return Reply{Text: "❓ Comando desconocido. Usa /help para ver los comandos."}
	default:
		return helpReply()
	}
}

func internalErrorReply() Reply {
	return Reply{Text: "❌ Ocurrió un error interno. Inténtalo de nuevo más tarde."}
}
