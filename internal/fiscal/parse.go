package fiscal

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ============================================================================
// Estruturas mínimas dos envelopes reconhecidos (nfeProc, NFe, cteProc, CTe
// e o envelope de evento procEventoNFe/procEventoCTe)
// ============================================================================

type nfeProc struct {
	NFe nfeEnvelope `xml:"NFe"`
}

type nfeEnvelope struct {
	InfNFe infNFe `xml:"infNFe"`
}

type infNFe struct {
	ID     string    `xml:"Id,attr"`
	Ide    ideNFe    `xml:"ide"`
	Dest   *dest     `xml:"dest"`
	Det    []det     `xml:"det"`
	Total  *totalNFe `xml:"total"`
	Transp *transp   `xml:"transp"`
}

type ideNFe struct {
	NNF   string `xml:"nNF"`
	DhEmi string `xml:"dhEmi"` // 4.00
	DEmi  string `xml:"dEmi"`  // 3.10/antigas
}

type totalNFe struct {
	ICMSTot icmsTot `xml:"ICMSTot"`
}

type icmsTot struct {
	VNF     string `xml:"vNF"`
	VICMS   string `xml:"vICMS"`
	VIPI    string `xml:"vIPI"`
	VPIS    string `xml:"vPIS"`
	VCOFINS string `xml:"vCOFINS"`
}

type transp struct {
	Transporta *participante `xml:"transporta"`
}

type cteProc struct {
	CTe cteEnvelope `xml:"CTe"`
}

type cteEnvelope struct {
	InfCte infCte `xml:"infCte"`
}

type infCte struct {
	ID     string        `xml:"Id,attr"`
	Ide    ideCTe        `xml:"ide"`
	Emit   *participante `xml:"emit"`
	Dest   *dest         `xml:"dest"`
	VPrest *vPrest       `xml:"vPrest"`
}

type ideCTe struct {
	NCT   string `xml:"nCT"`
	DhEmi string `xml:"dhEmi"`
	DhCT  string `xml:"dhCT"`
}

type vPrest struct {
	VTPrest string `xml:"vTPrest"`
}

// participante cobre emit/transporta – só precisamos de nome e documento.
type participante struct {
	CNPJ  string `xml:"CNPJ"`
	CPF   string `xml:"CPF"`
	XNome string `xml:"xNome"`
}

type dest struct {
	CNPJ      string    `xml:"CNPJ"`
	CPF       string    `xml:"CPF"`
	XNome     string    `xml:"xNome"`
	EnderDest *endereco `xml:"enderDest"`
}

type endereco struct {
	XLgr    string `xml:"xLgr"`
	Nro     string `xml:"nro"`
	XBairro string `xml:"xBairro"`
	XMun    string `xml:"xMun"`
	UF      string `xml:"UF"`
}

// ------------------------- Itens (det/prod/imposto) -------------------------

type det struct {
	Prod    prod    `xml:"prod"`
	Imposto imposto `xml:"imposto"`
}

type prod struct {
	CProd  string `xml:"cProd"`
	XProd  string `xml:"xProd"`
	QCom   string `xml:"qCom"`
	UCom   string `xml:"uCom"`
	VUnCom string `xml:"vUnCom"`
	VProd  string `xml:"vProd"`
}

type imposto struct {
	ICMS   *grupoImposto `xml:"ICMS"`
	IPI    *grupoImposto `xml:"IPI"`
	PIS    *grupoImposto `xml:"PIS"`
	COFINS *grupoImposto `xml:"COFINS"`
}

// grupoImposto guarda os subgrupos de um tributo (ICMS00, ICMS10, PISAliq,
// COFINSOutr, ...). O padrão fiscal permite exatamente um subgrupo por
// tributo, mas o formato do subgrupo é imprevisível, então capturamos todos
// os filhos e resolvemos o valor depois, numa ordem declarada.
type grupoImposto struct {
	Variantes []varianteImposto `xml:",any"`
}

type varianteImposto struct {
	XMLName xml.Name
	VICMS   string `xml:"vICMS"`
	VIPI    string `xml:"vIPI"`
	VPIS    string `xml:"vPIS"`
	VCOFINS string `xml:"vCOFINS"`
}

// ------------------------- Envelope de evento -------------------------------

type procEvento struct {
	Evento struct {
		InfEvento struct {
			TpEvento  string `xml:"tpEvento"`
			DetEvento struct {
				XJust string `xml:"xJust"`
			} `xml:"detEvento"`
		} `xml:"infEvento"`
	} `xml:"evento"`
}

// codigoEventoCancelamento é o tpEvento que marca cancelamento de NF-e/CT-e.
const codigoEventoCancelamento = "110111"

// ============================================================================
// Parser
// ============================================================================

// Parser converte texto XML bruto no Documento canônico. Parse é uma função
// total: qualquer entrada, por mais quebrada que esteja, vira um Documento
// válido – nunca um erro cruza essa fronteira.
type Parser struct {
	ids GeradorID
}

// NewParser cria um parser usando o gerador de IDs informado.
// Com nil, usa o gerador UUID padrão.
func NewParser(ids GeradorID) *Parser {
	if ids == nil {
		ids = GeradorUUID{}
	}
	return &Parser{ids: ids}
}

// Parse analisa o conteúdo de um arquivo XML e devolve o Documento canônico.
//
// A família é identificada em ordem fixa de prioridade: nfeProc, NFe,
// cteProc, CTe. Nenhum marcador reconhecido => TipoDesconhecido (resultado
// normal, não é erro). XML malformado => TipoDesconhecido com a descrição da
// falha em Motivo.
func (p *Parser) Parse(raw []byte, nomeArquivo string) Documento {
	doc := Documento{
		ID:          p.ids.NovoID(),
		NomeArquivo: nomeArquivo,
		Tipo:        TipoDesconhecido,
		Status:      StatusNormal,
	}

	r, derr := decodeRaizes(raw)

	switch {
	case r.nfeProc != nil:
		montarNFe(&doc, r.nfeProc.NFe.InfNFe)
	case r.nfe != nil:
		montarNFe(&doc, r.nfe.InfNFe)
	case r.cteProc != nil:
		montarCTe(&doc, r.cteProc.CTe.InfCte)
	case r.cte != nil:
		montarCTe(&doc, r.cte.InfCte)
	default:
		if derr != nil {
			doc.Motivo = fmt.Sprintf("Erro ao processar: %v", derr)
		}
		return doc
	}

	aplicarEvento(&doc, r.evento)
	return doc
}

// raizes acumula os envelopes encontrados nos elementos de topo do arquivo.
// Alguns distribuidores concatenam o envelope principal com o envelope de
// evento no mesmo arquivo, então varremos todas as raízes.
type raizes struct {
	nfeProc *nfeProc
	nfe     *nfeEnvelope
	cteProc *cteProc
	cte     *cteEnvelope
	evento  *procEvento
}

// errSemMarcacao cobre conteúdo que o decoder tokeniza sem reclamar mas que
// não contém elemento nenhum (texto solto, JSON etc.): é entrada malformada,
// não um documento de família desconhecida.
var errSemMarcacao = errors.New("o conteúdo não contém marcação XML")

func decodeRaizes(raw []byte) (raizes, error) {
	var r raizes
	var viuElemento bool

	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !viuElemento && len(bytes.TrimSpace(raw)) > 0 {
				return r, errSemMarcacao
			}
			return r, nil
		}
		if err != nil {
			return r, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		viuElemento = true

		switch se.Name.Local {
		case "nfeProc":
			var v nfeProc
			if err := dec.DecodeElement(&v, &se); err != nil {
				return r, err
			}
			if r.nfeProc == nil {
				r.nfeProc = &v
			}
		case "NFe":
			var v nfeEnvelope
			if err := dec.DecodeElement(&v, &se); err != nil {
				return r, err
			}
			if r.nfe == nil {
				r.nfe = &v
			}
		case "cteProc":
			var v cteProc
			if err := dec.DecodeElement(&v, &se); err != nil {
				return r, err
			}
			if r.cteProc == nil {
				r.cteProc = &v
			}
		case "CTe":
			var v cteEnvelope
			if err := dec.DecodeElement(&v, &se); err != nil {
				return r, err
			}
			if r.cte == nil {
				r.cte = &v
			}
		case "procEventoNFe", "procEventoCTe":
			var v procEvento
			if err := dec.DecodeElement(&v, &se); err != nil {
				return r, err
			}
			if r.evento == nil {
				r.evento = &v
			}
		default:
			if err := dec.Skip(); err != nil {
				return r, err
			}
		}
	}
}

// ============================================================================
// Montagem por família
// ============================================================================

func montarNFe(doc *Documento, inf infNFe) {
	doc.Tipo = TipoNFe
	doc.Chave = somenteDigitos(inf.ID)
	doc.Numero = strings.TrimSpace(inf.Ide.NNF)
	doc.Data = primeiroNaoVazio(inf.Ide.DhEmi, inf.Ide.DEmi)

	if inf.Total != nil {
		doc.ValorTotal = parseValor(inf.Total.ICMSTot.VNF)
		doc.Impostos = Impostos{
			ICMSTotal:   parseValor(inf.Total.ICMSTot.VICMS),
			IPITotal:    parseValor(inf.Total.ICMSTot.VIPI),
			PISTotal:    parseValor(inf.Total.ICMSTot.VPIS),
			COFINSTotal: parseValor(inf.Total.ICMSTot.VCOFINS),
		}
	}

	doc.Cliente = montarCliente(inf.Dest)

	if inf.Transp != nil && inf.Transp.Transporta != nil {
		doc.Transportadora = montarTransportadora(inf.Transp.Transporta)
	}

	for _, d := range inf.Det {
		doc.Itens = append(doc.Itens, montarItem(d))
	}
}

func montarCTe(doc *Documento, inf infCte) {
	doc.Tipo = TipoCTe
	doc.Chave = somenteDigitos(inf.ID)
	doc.Numero = strings.TrimSpace(inf.Ide.NCT)
	doc.Data = primeiroNaoVazio(inf.Ide.DhEmi, inf.Ide.DhCT)

	if inf.VPrest != nil {
		doc.ValorTotal = parseValor(inf.VPrest.VTPrest)
	}

	doc.Cliente = montarCliente(inf.Dest)

	// No CT-e o prestador do serviço de transporte é o próprio emitente.
	if inf.Emit != nil {
		doc.Transportadora = montarTransportadora(inf.Emit)
	}
}

func montarCliente(d *dest) Cliente {
	if d == nil {
		return Cliente{}
	}
	return Cliente{
		Nome:     strings.TrimSpace(d.XNome),
		CnpjCpf:  primeiroNaoVazio(d.CNPJ, d.CPF),
		Endereco: montarEndereco(d.EnderDest),
	}
}

// montarEndereco junta os componentes não vazios com ", ", sem delimitadores
// duplicados quando algum componente falta.
func montarEndereco(e *endereco) string {
	if e == nil {
		return ""
	}
	partes := make([]string, 0, 5)
	for _, c := range []string{e.XLgr, e.Nro, e.XBairro, e.XMun, e.UF} {
		if c = strings.TrimSpace(c); c != "" {
			partes = append(partes, c)
		}
	}
	return strings.Join(partes, ", ")
}

func montarTransportadora(t *participante) Transportadora {
	return Transportadora{
		Nome:    strings.TrimSpace(t.XNome),
		CnpjCpf: primeiroNaoVazio(t.CNPJ, t.CPF),
	}
}

func montarItem(d det) Item {
	return Item{
		Codigo:        strings.TrimSpace(d.Prod.CProd),
		Nome:          strings.TrimSpace(d.Prod.XProd),
		Quantidade:    parseValor(d.Prod.QCom),
		Unidade:       strings.TrimSpace(d.Prod.UCom),
		ValorUnitario: parseValor(d.Prod.VUnCom),
		ValorTotal:    parseValor(d.Prod.VProd),
		Impostos: ImpostosItem{
			ICMS:   extrairValorImposto(d.Imposto.ICMS),
			IPI:    extrairValorImposto(d.Imposto.IPI),
			PIS:    extrairValorImposto(d.Imposto.PIS),
			COFINS: extrairValorImposto(d.Imposto.COFINS),
		},
	}
}

// ============================================================================
// Extração de imposto por subgrupo
// ============================================================================

// subgruposImposto é a lista declarada de subgrupos reconhecidos, na ordem em
// que são examinados. Não dependemos da ordem de iteração do documento.
var subgruposImposto = []string{
	"ICMS00", "ICMS10", "ICMS20", "ICMS30", "ICMS40", "ICMS51", "ICMS60",
	"ICMS70", "ICMS90", "ICMSPart", "ICMSST",
	"ICMSSN101", "ICMSSN102", "ICMSSN201", "ICMSSN202", "ICMSSN500", "ICMSSN900",
	"IPITrib", "IPINT",
	"PISAliq", "PISQtde", "PISNT", "PISOutr", "PISST",
	"COFINSAliq", "COFINSQtde", "COFINSNT", "COFINSOutr", "COFINSST",
}

// extrairValorImposto devolve o primeiro valor encontrado no primeiro
// subgrupo reconhecido do grupo; zero se nada encontrado.
//
// Limitação conhecida: extrai um único valor por grupo mesmo que um subgrupo
// carregue mais de um campo de valor ao mesmo tempo.
func extrairValorImposto(g *grupoImposto) float64 {
	if g == nil {
		return 0
	}

	for _, tag := range subgruposImposto {
		for _, v := range g.Variantes {
			if v.XMLName.Local != tag {
				continue
			}
			for _, campo := range []string{v.VICMS, v.VIPI, v.VPIS, v.VCOFINS} {
				if strings.TrimSpace(campo) != "" {
					return parseValor(campo)
				}
			}
		}
	}

	return 0
}

// ============================================================================
// Detecção de cancelamento
// ============================================================================

// aplicarEvento verifica o envelope de evento. Só o evento de cancelamento
// (tpEvento 110111) muda o status; StatusInutilizada nunca é produzido aqui.
func aplicarEvento(doc *Documento, ev *procEvento) {
	if ev == nil {
		return
	}
	if strings.TrimSpace(ev.Evento.InfEvento.TpEvento) != codigoEventoCancelamento {
		return
	}

	doc.Status = StatusCancelada
	doc.Motivo = strings.TrimSpace(ev.Evento.InfEvento.DetEvento.XJust)
	if doc.Motivo == "" {
		doc.Motivo = "Cancelada"
	}
}

// ============================================================================
// Helpers genéricos
// ============================================================================

func primeiroNaoVazio(valores ...string) string {
	for _, v := range valores {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseValor(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	v = strings.ReplaceAll(v, ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func somenteDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
