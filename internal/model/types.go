package model

// DocumentType 是法律文件类型的封闭集合。
type DocumentType string

const (
	DocumentTypeLuat      DocumentType = "Luật"
	DocumentTypeNghiDinh  DocumentType = "Nghị định"
	DocumentTypeThongTu   DocumentType = "Thông tư"
	DocumentTypeQuyetDinh DocumentType = "Quyết định"
	DocumentTypeNghiQuyet DocumentType = "Nghị quyết"
	DocumentTypeChiThi    DocumentType = "Chỉ thị"
	DocumentTypeCongVan   DocumentType = "Công văn"
)

// DocumentTypes 按固定顺序列出所有合法的文件类型，用于拼装提示词。
var DocumentTypes = []DocumentType{
	DocumentTypeLuat,
	DocumentTypeNghiDinh,
	DocumentTypeThongTu,
	DocumentTypeQuyetDinh,
	DocumentTypeNghiQuyet,
	DocumentTypeChiThi,
	DocumentTypeCongVan,
}

// IsValid 判断是否属于封闭集合（大小写与变音符号必须完全一致）。
func (d DocumentType) IsValid() bool {
	for _, v := range DocumentTypes {
		if v == d {
			return true
		}
	}
	return false
}

// LegalField 是法律领域的封闭集合。
type LegalField string

const (
	LegalFieldLaoDong     LegalField = "Lao động"
	LegalFieldThue        LegalField = "Thuế"
	LegalFieldDatDai      LegalField = "Đất đai"
	LegalFieldDoanhNghiep LegalField = "Doanh nghiệp"
	LegalFieldHinhSu      LegalField = "Hình sự"
	LegalFieldDanSu       LegalField = "Dân sự"
	LegalFieldHanhChinh   LegalField = "Hành chính"
	LegalFieldGiaoDuc     LegalField = "Giáo dục"
	LegalFieldYTe         LegalField = "Y tế"
	LegalFieldTaiChinh    LegalField = "Tài chính"
	LegalFieldXayDung     LegalField = "Xây dựng"
	LegalFieldVanHoa      LegalField = "Văn hóa"
	LegalFieldThuongMai   LegalField = "Thương mại"
	LegalFieldCongNghe    LegalField = "Công nghệ thông tin"
	LegalFieldTaiNguyen   LegalField = "Tài nguyên"
)

// LegalFields 按固定顺序列出所有合法的法律领域。
var LegalFields = []LegalField{
	LegalFieldLaoDong,
	LegalFieldThue,
	LegalFieldDatDai,
	LegalFieldDoanhNghiep,
	LegalFieldHinhSu,
	LegalFieldDanSu,
	LegalFieldHanhChinh,
	LegalFieldGiaoDuc,
	LegalFieldYTe,
	LegalFieldTaiChinh,
	LegalFieldXayDung,
	LegalFieldVanHoa,
	LegalFieldThuongMai,
	LegalFieldCongNghe,
	LegalFieldTaiNguyen,
}

func (f LegalField) IsValid() bool {
	for _, v := range LegalFields {
		if v == f {
			return true
		}
	}
	return false
}

// 查询元数据的键，同时也是向量库 payload 的过滤字段名。
const (
	MetaDocumentType   = "document_type"
	MetaField          = "field"
	MetaDocumentNumber = "document_number"
)

// FilterKeys 是构造过滤条件时使用的键顺序。
var FilterKeys = []string{MetaDocumentType, MetaField, MetaDocumentNumber}
