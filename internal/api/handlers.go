package api

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/importer"
	"github.com/rgehrsitz/benadmin/internal/output"
	"github.com/rgehrsitz/benadmin/internal/store"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// createImport accepts a multipart upload with fields file, group and plan_start_date
func (s *Server) createImport(c *fiber.Ctx) error {
	format, err := importer.ParseFormat(c.Params("format"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(importer.FailurePayload(err))
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(importer.FailurePayload(errors.New("file is required")))
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(importer.FailurePayload(&importer.BatchError{Message: "file unreadable", Err: err}))
	}
	defer f.Close()

	table, err := importer.ReadTable(f, fh.Filename)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(importer.FailurePayload(&importer.BatchError{Message: "file unreadable", Err: err}))
	}

	batch := importer.Batch{
		Format:        format,
		Filename:      fh.Filename,
		GroupName:     strings.TrimSpace(c.FormValue("group")),
		PlanStartDate: strings.TrimSpace(c.FormValue("plan_start_date")),
		Table:         table,
	}
	slog.Debug("import upload received", "format", format, "filename", fh.Filename, "rows", len(table.Rows))

	report, err := s.importer.Run(c.UserContext(), batch)
	if err != nil {
		if importer.IsBatchError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(importer.FailurePayload(err))
		}
		slog.Error("import failed", "filename", fh.Filename, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(importer.FailurePayload(err))
	}
	return c.JSON(report.Payload())
}

// createEnrollment adds one plan interactively; mode defaults to interactive and kind to group
func (s *Server) createEnrollment(c *fiber.Ctx) error {
	var req enrollment.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "failed to parse enrollment request"})
	}
	if req.Mode == "" {
		req.Mode = enrollment.ModeInteractive
	}
	if req.Kind == "" {
		req.Kind = domain.PlanKindGroup
	}

	res, err := s.upserter.Enroll(c.UserContext(), req)
	if err != nil {
		return rowFailure(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "result": res})
}

func (s *Server) createDependent(c *fiber.Ctx) error {
	var req enrollment.DependentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "failed to parse dependent request"})
	}
	res, err := s.upserter.AddDependent(c.UserContext(), req)
	if err != nil {
		return rowFailure(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "result": res})
}

type terminationRequest struct {
	Date string `json:"date"`
}

func (s *Server) terminateEnrollment(c *fiber.Ctx) error {
	var req terminationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "failed to parse termination request"})
	}
	kind := domain.PlanKind(c.Params("kind"))
	if err := s.upserter.Terminate(c.UserContext(), kind, c.Params("id"), req.Date); err != nil {
		return rowFailure(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) getRoster(c *fiber.Ctx) error {
	roster, err := output.BuildRoster(c.UserContext(), s.store, c.Params("name"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	if err != nil {
		return err
	}

	switch c.Query("format", "json") {
	case "csv":
		data, err := output.RosterCSV(roster)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(data)
	case "html":
		data, err := output.RosterHTML(roster)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(data)
	default:
		return c.JSON(roster)
	}
}

// rowFailure maps an engine error onto an HTTP status
func rowFailure(c *fiber.Ctx, err error) error {
	kind := enrollment.KindOf(err)
	status := fiber.StatusInternalServerError
	switch kind {
	case enrollment.KindValidation:
		status = fiber.StatusBadRequest
	case enrollment.KindNotFound:
		status = fiber.StatusNotFound
	case enrollment.KindDuplicate:
		status = fiber.StatusConflict
	default:
		slog.Error("enrollment request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "kind": kind, "error": err.Error()})
}
