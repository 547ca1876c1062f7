package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iqoption/crashcollector/collector/service"
	"github.com/iqoption/crashcollector/common/format/minidump"
	"github.com/iqoption/crashcollector/common/utils"
)

const drainLimit = 1 << 20

type BaseReply struct {
	Status string `json:"status"`
}

func (m *Server) setSuccessStatus(c *gin.Context) {
	c.JSON(http.StatusOK, &BaseReply{"success"})
}

func (m *Server) setServerError(descr string, c *gin.Context) {
	c.JSON(http.StatusInternalServerError, &BaseReply{fmt.Sprintf("error: %s", descr)})
}

func (m *Server) setBadRequest(descr string, c *gin.Context) {
	c.JSON(http.StatusBadRequest, &BaseReply{fmt.Sprintf("error: %s", descr)})
}

func (m *Server) setNotFound(descr string, c *gin.Context) {
	c.JSON(http.StatusNotFound, &BaseReply{fmt.Sprintf("error: %s", descr)})
}

// PostCrash decodes one crash upload, answers with its report id, closes the
// connection and only then notifies the waiter.
func (m *Server) PostCrash() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := m.decode(c)
		if err != nil {
			c.Error(err)

			var perr *service.ParseError
			if errors.As(err, &perr) {
				m.service.Fail(err)
				log.WithFields(log.Fields{
					"remote":       c.ClientIP(),
					"content_type": c.ContentType(),
					"error":        perr.Err,
				}).Error("Can't decode crash upload")
				m.setBadRequest(perr.Error(), c)
				return
			}
			log.WithError(err).Error("Can't store crash upload")
			m.setServerError("Can't store crash upload", c)
			return
		}

		notify := m.service.Add(report)
		m.respond(c, report.Id)
		notify()
	}
}

func (m *Server) decode(c *gin.Context) (*minidump.Report, error) {
	err := c.Request.ParseMultipartForm(m.conf.MaxMemory())
	if err != nil {
		return nil, errors.Wrap(&service.ParseError{Err: err}, 0)
	}
	form := c.Request.MultipartForm
	defer form.RemoveAll()

	fields := make(map[string]string, len(form.Value))
	for name, values := range form.Value {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}
	report := minidump.NewReport(fields)

	dir := m.conf.DumpsDir()
	if len(dir) == 0 || len(form.File) == 0 {
		return report, nil
	}

	report.Files = make(map[string]string, len(form.File))
	for name, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		path, err := m.saveFile(headers[0], dir, name)
		if err != nil {
			for _, saved := range report.Files {
				os.Remove(saved)
			}
			return nil, err
		}
		report.Files[name] = path
	}
	return report, nil
}

func (m *Server) saveFile(header *multipart.FileHeader, dir, name string) (string, error) {
	file, err := header.Open()
	if err != nil {
		log.WithField("param", name).Warning("Upload file: can't open part")
		return "", errors.Wrap(err, 0)
	}
	defer file.Close()

	tmpFile, err := os.CreateTemp(dir, m.prefix(name+"_"))
	if err != nil {
		log.WithError(err).Error("Could not create temporary file")
		return "", errors.Wrap(err, 0)
	}
	defer tmpFile.Close()

	_, err = io.Copy(tmpFile, file)
	if err != nil {
		os.Remove(tmpFile.Name())
		log.WithFields(log.Fields{
			"file":  tmpFile.Name(),
			"error": err,
		}).Error("Could not write temporary file")
		return "", errors.Wrap(err, 0)
	}

	return tmpFile.Name(), nil
}

// respond writes the report id and tears the connection down. When the
// underlying connection can't be hijacked, "Connection: close" makes
// net/http drop it after the handler returns.
func (m *Server) respond(c *gin.Context, id string) {
	// Unread request bytes would turn the close into a reset.
	io.Copy(io.Discard, io.LimitReader(c.Request.Body, drainLimit))

	body := []byte(id)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Content-Length", strconv.Itoa(len(body)))
	c.Header("Connection", "close")
	c.Status(http.StatusOK)

	if _, err := c.Writer.Write(body); err != nil {
		log.WithFields(log.Fields{
			"id":    id,
			"error": err,
		}).Warning("Can't write crash response")
		return
	}
	c.Writer.Flush()

	hj, ok := c.Request.Context().Value(hijackerKey{}).(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		log.WithError(err).Debug("Can't hijack upload connection")
		return
	}
	conn.Close()
}

func (m *Server) GetCrashes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, m.service.Crashes())
	}
}

func (m *Server) GetLatestCrash() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := m.service.Latest()
		if !ok {
			m.setNotFound("no crashes received", c)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func (m *Server) GetCrash() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := utils.Trim(c.Param("id"))
		r, ok := m.service.Get(id)
		if !ok {
			m.setNotFound(fmt.Sprintf("crash %s not found", id), c)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func (m *Server) GetHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.setSuccessStatus(c)
	}
}

func (m *Server) prefix(p string) string {
	dt := time.Now()
	return fmt.Sprintf("%04d%02d%02d%02d%02d-%s", dt.Year(),
		dt.Month(),
		dt.Day(),
		dt.Hour(),
		dt.Minute(),
		p)
}
