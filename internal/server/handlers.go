package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/engine"
	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

// SessionHeader carries the session ID returned by /api/upload.
const SessionHeader = "X-Session-ID"

// respond writes v as JSON with every non-finite float replaced by null.
func respond(c *gin.Context, code int, v any) {
	c.JSON(code, output.Sanitize(v))
}

// verbosity reads the "verbosity" query parameter, falling back to the
// server default.
func (s *Server) verbosity(c *gin.Context) output.Verbosity {
	if v := c.Query("verbosity"); v != "" {
		return output.ParseVerbosity(v)
	}
	return s.cfg.Verbosity
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.sessions.len(),
		"store":    s.store != nil,
	})
}

// readUpload parses the multipart "file" field as a CSV batch.
func (s *Server) readUpload(c *gin.Context) (model.RawBatch, error) {
	if c.Request.ContentLength > s.cfg.MaxUploadBytes {
		return model.RawBatch{}, errUploadTooLarge
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			return model.RawBatch{}, err
		}
		return model.RawBatch{}, fmt.Errorf("%w: %v", errMissingUpload, err)
	}
	f, err := fh.Open()
	if err != nil {
		return model.RawBatch{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return connector.ReadCSV(f, fh.Filename, 0)
}

func (s *Server) upload(c *gin.Context) {
	raw, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess, err := s.engine.NewSession(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	if evicted := s.sessions.add(sess); len(evicted) > 0 {
		s.logger.Info("sessions evicted", "count", len(evicted))
	}
	s.logger.Info("session opened", "session", sess.ID(), "source", raw.Source, "rows", sess.Batch().Rows())

	c.Header(SessionHeader, sess.ID())
	respond(c, http.StatusCreated, gin.H{
		"sessionId": sess.ID(),
		"summary":   sess.Summary(),
	})
}

// analyze runs the whole pipeline on an upload without opening a session.
func (s *Server) analyze(c *gin.Context) {
	raw, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := s.engine.Analyze(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.sink != nil {
		if err := s.sink.Write(c.Request.Context(), *a.Report); err != nil {
			s.logger.Warn("report sink write failed", "error", err)
		}
	}
	respond(c, http.StatusOK, output.Format(*a.Report, s.verbosity(c)))
}

// session resolves the request's session from the header or query.
func (s *Server) session(c *gin.Context) (*engine.Session, error) {
	id := strings.TrimSpace(c.GetHeader(SessionHeader))
	if id == "" {
		id = strings.TrimSpace(c.Query("session"))
	}
	if id == "" {
		return nil, errNoSession
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownSession, id)
	}
	return sess, nil
}

func (s *Server) detectAnomalies(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rep, err := sess.DetectAnomalies(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, output.Format(model.Report{Anomalies: rep}, s.verbosity(c)).Anomalies)
}

func (s *Server) classifyFaults(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !sess.Batch().HasLabels() {
		s.fail(c, fmt.Errorf("classify: %w: batch has no label column", model.ErrSchema))
		return
	}
	rep, err := sess.Train(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, output.Format(model.Report{Classification: rep}, s.verbosity(c)).Classification)
}

func (s *Server) rootCause(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	fi, cr, err := sess.RootCause(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	formatted := output.Format(model.Report{Importance: fi}, s.verbosity(c))
	respond(c, http.StatusOK, gin.H{
		"importance":     formatted.Importance,
		"crossReference": cr,
	})
}

func (s *Server) visualizationData(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	st, err := sess.Statistics(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, output.Format(model.Report{Statistics: st}, s.verbosity(c)).Statistics)
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.sessions.remove(id) {
		s.fail(c, fmt.Errorf("%w: %s", errUnknownSession, id))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) saveModel(c *gin.Context) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	m := sess.Model()
	if m == nil {
		s.fail(c, fmt.Errorf("session %s: %w", sess.ID(), model.ErrModelNotTrained))
		return
	}
	name := c.Param("name")
	if err := s.store.Save(name, m); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("model saved", "name", name, "session", sess.ID())
	c.JSON(http.StatusCreated, gin.H{"name": name, "features": len(m.Features()), "classes": m.Classes()})
}

func (s *Server) listModels(c *gin.Context) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	models, err := s.store.List()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (s *Server) deleteModel(c *gin.Context) {
	if s.store == nil {
		s.fail(c, errNoStore)
		return
	}
	if err := s.store.Delete(c.Param("name")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
