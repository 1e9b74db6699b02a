package jobs

// Role is one supported job role. ID is the identifier used on the
// wire; Label is the display name shown to users.
type Role struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Category string `json:"category" enum:"it,planning,design,marketing"`
}

// Roles lists the 16 supported roles: 7 IT, 4 planning, 3 design,
// 2 marketing.
var Roles = []Role{
	{ID: "frontend", Label: "프론트엔드", Category: "it"},
	{ID: "backend", Label: "백엔드", Category: "it"},
	{ID: "fullstack", Label: "풀스택", Category: "it"},
	{ID: "mobile", Label: "모바일", Category: "it"},
	{ID: "data_ml", Label: "데이터/ML", Category: "it"},
	{ID: "devops", Label: "DevOps", Category: "it"},
	{ID: "security", Label: "보안", Category: "it"},
	{ID: "service_planning", Label: "서비스기획", Category: "planning"},
	{ID: "pm", Label: "PM", Category: "planning"},
	{ID: "po", Label: "PO", Category: "planning"},
	{ID: "biz_planning", Label: "사업기획", Category: "planning"},
	{ID: "ui_ux", Label: "UI/UX", Category: "design"},
	{ID: "graphic", Label: "그래픽", Category: "design"},
	{ID: "bx", Label: "BX", Category: "design"},
	{ID: "performance_marketing", Label: "퍼포먼스 마케팅", Category: "marketing"},
	{ID: "content_marketing", Label: "콘텐츠 마케팅", Category: "marketing"},
}

// EducationLevels lists the accepted education values.
var EducationLevels = []string{
	"고졸", "전문대졸", "대졸", "대학원졸(석사)", "대학원졸(박사)", "기타",
}

var roleIDs = func() map[string]Role {
	m := make(map[string]Role, len(Roles))
	for _, r := range Roles {
		m[r.ID] = r
	}
	return m
}()

var educationSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EducationLevels))
	for _, e := range EducationLevels {
		m[e] = struct{}{}
	}
	return m
}()

// ValidRole reports whether id names a supported role.
func ValidRole(id string) bool {
	_, ok := roleIDs[id]
	return ok
}

// Lookup returns the role for id.
func Lookup(id string) (Role, bool) {
	r, ok := roleIDs[id]
	return r, ok
}

// ValidEducation reports whether v is an accepted education value.
func ValidEducation(v string) bool {
	_, ok := educationSet[v]
	return ok
}

// RoleIDs returns the supported role ids in catalog order.
func RoleIDs() []string {
	ids := make([]string, 0, len(Roles))
	for _, r := range Roles {
		ids = append(ids, r.ID)
	}
	return ids
}
