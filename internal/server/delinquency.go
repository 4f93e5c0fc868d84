package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/smallbiznis/delinquency/internal/delinquency/export"
)

// GetDelinquency returns the by-date rows as an array, or the totals
// object when view=total.
func (s *Server) GetDelinquency(c *gin.Context) {
	view, err := domain.ParseView(c.Query("view"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.delinquencySvc.Delinquency(c.Request.Context(), domain.DelinquencyRequest{View: view})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if view == domain.ViewByDate {
		rows := resp.ByDate
		if rows == nil {
			rows = []domain.DailyBucket{}
		}
		c.Header("X-Has-Data", strconv.FormatBool(resp.HasData))
		c.JSON(http.StatusOK, rows)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetDetails(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		AbortWithError(c, newValidationError("date", "required", "date is required"))
		return
	}
	date, err := parseDayFirstDate(raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.delinquencySvc.Details(c.Request.Context(), domain.DetailsRequest{Date: date})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) GetReport(c *gin.Context) {
	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.delinquencySvc.Report(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) ExportReport(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req, err := parseReportRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.delinquencySvc.Report(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	doc, err := export.Render(format, report)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func parseReportRequest(c *gin.Context) (domain.ReportRequest, error) {
	start, err := parseOptionalDate(c.Query("start"))
	if err != nil {
		return domain.ReportRequest{}, err
	}
	end, err := parseOptionalDate(c.Query("end"))
	if err != nil {
		return domain.ReportRequest{}, err
	}
	if start != nil && end != nil && start.After(*end) {
		return domain.ReportRequest{}, domain.ErrInvalidRange
	}
	return domain.ReportRequest{Start: start, End: end}, nil
}
