package agent

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hugr-lab/manageql/mgmt"
)

// getNames lists the objects matching the optional pattern query parameter.
func (a *Agent) getNames(c *gin.Context) {
	var pattern *mgmt.ObjectName
	if p := c.Query("pattern"); p != "" {
		name, err := mgmt.ParseObjectName(p)
		if err != nil {
			a.fail(c, err)
			return
		}
		pattern = &name
	}

	names, err := a.conn.QueryNames(c.Request.Context(), pattern)
	if err != nil {
		a.fail(c, err)
		return
	}
	mgmt.SortNames(names)
	resp := NamesResponse{Names: make([]string, len(names))}
	for i, n := range names {
		resp.Names[i] = n.Canonical()
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Agent) getDescribe(c *gin.Context) {
	name, ok := a.objectName(c, c.Query("name"))
	if !ok {
		return
	}
	infos, err := a.conn.Describe(c.Request.Context(), name)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DescribeResponse{Name: name.Canonical(), Attributes: infos})
}

func (a *Agent) postRead(c *gin.Context) {
	var req ReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Message: err.Error()})
		return
	}
	name, ok := a.objectName(c, req.Name)
	if !ok {
		return
	}

	attrs, err := a.conn.ReadAttributes(c.Request.Context(), name, req.Attributes)
	if err != nil {
		a.fail(c, err)
		return
	}
	resp := ReadResponse{Name: name.Canonical(), Attributes: make([]WireAttribute, 0, len(attrs))}
	for _, attr := range attrs {
		w, err := mgmt.EncodeValue(attr.Value)
		if err != nil {
			// Unencodable values are omitted like unreadable attributes.
			a.logger.Warn("agent: skipping attribute", "object", resp.Name, "attribute", attr.Name, "error", err)
			continue
		}
		resp.Attributes = append(resp.Attributes, WireAttribute{Name: attr.Name, Value: w})
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Agent) objectName(c *gin.Context, s string) (mgmt.ObjectName, bool) {
	if s == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Message: "object name is required"})
		return mgmt.ObjectName{}, false
	}
	name, err := mgmt.ParseObjectName(s)
	if err != nil {
		a.fail(c, err)
		return mgmt.ObjectName{}, false
	}
	return name, true
}

// fail writes the error response matching err.
func (a *Agent) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mgmt.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: err.Error()})
	case errors.Is(err, mgmt.ErrMalformedName):
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: CodeMalformedName, Message: err.Error()})
	default:
		a.logger.Warn("agent request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: err.Error()})
	}
}
