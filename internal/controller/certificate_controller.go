package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// IssueCertificate godoc
// @Summary 申请结业证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 400 {object} util.Response "课程未完成"
// @Router /api/student/courses/{courseId}/certificate [post]
func (ctrl *CertificateController) IssueCertificate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}
	cert, err := ctrl.CertificateService.Issue(c.Request.Context(), user, courseID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, cert)
}

// ListCertificates godoc
// @Summary 我的证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/student/certificates [get]
func (ctrl *CertificateController) ListCertificates(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	certs, err := ctrl.CertificateService.List(c.Request.Context(), user)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, certs)
}
