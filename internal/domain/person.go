package domain

// Person 人员信息领域模型
// 可选字段使用指针（nil = 未提供），避免空字符串哨兵造成的数据丢失
// 缓存快照序列化完整结构（含 nil 字段），见 internal/cache
type Person struct {
	ID                  string  `json:"id" msgpack:"id"`
	IdentityNo          string  `json:"identity_no" msgpack:"identity_no"`
	Name                string  `json:"name" msgpack:"name"`
	Phone               *string `json:"phone" msgpack:"phone"`
	Email               *string `json:"email" msgpack:"email"`
	Address             *string `json:"address" msgpack:"address"`
	IdentityFrontalView *string `json:"identity_frontal_view" msgpack:"identity_frontal_view"`
	IdentityRearView    *string `json:"identity_rear_view" msgpack:"identity_rear_view"`
	LicenseFrontalView  *string `json:"license_frontal_view" msgpack:"license_frontal_view"`
	Verified            bool    `json:"verified" msgpack:"verified"`
	Deleted             bool    `json:"deleted" msgpack:"deleted"`
}

// PersonInput createPerson 的入参记录
// phone 可选；email/address 不参与创建（与存量实现一致）
type PersonInput struct {
	Name       string  `json:"name"`
	IdentityNo string  `json:"identity_no"`
	Phone      *string `json:"phone,omitempty"`
}

// PersonSummary createPerson 的逐条返回（保持输入顺序）
type PersonSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IdentityNo string `json:"identity_no"`
}

// ViewUpdate updateViews 的入参记录
// 视图字段缺省（nil）表示保留现值
type ViewUpdate struct {
	PID                 string  `json:"pid"`
	IdentityFrontalView *string `json:"identity_frontal_view,omitempty"`
	IdentityRearView    *string `json:"identity_rear_view,omitempty"`
	LicenseFrontalView  *string `json:"license_frontal_view,omitempty"`
}
