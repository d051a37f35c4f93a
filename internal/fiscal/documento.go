package fiscal

import "github.com/google/uuid"

// ============================================================================
// Modelo canônico – um Documento por XML parseado, imutável após o parse
// ============================================================================

// TipoDocumento identifica a família fiscal do documento.
type TipoDocumento string

const (
	TipoNFe          TipoDocumento = "NFe"
	TipoCTe          TipoDocumento = "CTe"
	TipoDesconhecido TipoDocumento = "Desconhecido"
)

// StatusDocumento é o estado de validade fiscal do documento.
type StatusDocumento string

const (
	StatusNormal    StatusDocumento = "Normal"
	StatusCancelada StatusDocumento = "Cancelada"
	// StatusInutilizada faz parte do modelo, mas nenhum evento conhecido
	// produz esse status hoje.
	StatusInutilizada StatusDocumento = "Inutilizada"
)

// Cliente é o destinatário do documento.
type Cliente struct {
	Nome     string `json:"nome"`
	CnpjCpf  string `json:"cnpjCpf"`
	Endereco string `json:"endereco"`
}

// Transportadora responsável pelo transporte (na CTe, o próprio emitente).
type Transportadora struct {
	Nome    string `json:"nome"`
	CnpjCpf string `json:"cnpjCpf"`
}

// ImpostosItem são os valores extraídos dos subgrupos tributários do item.
type ImpostosItem struct {
	ICMS   float64 `json:"icms"`
	IPI    float64 `json:"ipi"`
	PIS    float64 `json:"pis"`
	COFINS float64 `json:"cofins"`
}

// Item é uma linha de produto (só existe em NFe).
type Item struct {
	Codigo        string       `json:"codigo"`
	Nome          string       `json:"nome"`
	Quantidade    float64      `json:"quantidade"`
	Unidade       string       `json:"unidade"`
	ValorUnitario float64      `json:"valorUnitario"`
	ValorTotal    float64      `json:"valorTotal"`
	Impostos      ImpostosItem `json:"impostos"`
}

// Impostos são os totais declarados no documento.
type Impostos struct {
	ICMSTotal   float64 `json:"icmsTotal"`
	IPITotal    float64 `json:"ipiTotal"`
	PISTotal    float64 `json:"pisTotal"`
	COFINSTotal float64 `json:"cofinsTotal"`
}

// Documento é o registro canônico, independente do formato do envelope
// de origem. Campos numéricos ausentes ou inválidos ficam em 0; strings
// ausentes ficam vazias, nunca há "null".
//
// Quando Tipo == TipoDesconhecido só ID, NomeArquivo, Status e Motivo
// carregam informação.
type Documento struct {
	ID             string          `json:"id"`
	NomeArquivo    string          `json:"fileName"`
	Tipo           TipoDocumento   `json:"tipo"`
	Chave          string          `json:"chave"`
	Numero         string          `json:"numero"`
	Data           string          `json:"data"`
	ValorTotal     float64         `json:"valorTotal"`
	Cliente        Cliente         `json:"cliente"`
	Transportadora Transportadora  `json:"transportadora"`
	Itens          []Item          `json:"itens,omitempty"`
	Impostos       Impostos        `json:"impostos"`
	Status         StatusDocumento `json:"status"`
	Motivo         string          `json:"motivo"`
}

// ============================================================================
// Alocação de identificadores
// ============================================================================

// GeradorID aloca um identificador único dentro de um lote. Implementações
// precisam ser seguras para uso concorrente; unicidade prática basta, não
// precisa ser criptográfica.
type GeradorID interface {
	NovoID() string
}

// GeradorUUID é o gerador padrão, baseado em UUID v4.
type GeradorUUID struct{}

func (GeradorUUID) NovoID() string {
	return uuid.NewString()
}
