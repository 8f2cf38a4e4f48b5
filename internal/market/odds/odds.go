// Package odds calcula as odds de um evento como mistura do prior externo
// com a distribuição do dinheiro apostado, suavizada por passo fixo.
package odds

import "math"

const (
	// Beta é o passo máximo de suavização: a odd visível de um resultado
	// muda no máximo Beta pontos percentuais por aposta colocada.
	Beta = 0.1

	// PlaceholderOdds é a odd atribuída a um resultado sem liquidez
	// (pool zero); sinaliza "muito improvável".
	PlaceholderOdds = 1000

	// Defaults de prior quando o estimador externo não respondeu.
	DefaultPrior     = 50
	DefaultDrawPrior = 20
)

// Line é uma tripla de odds percentuais; Draw só é significativo em
// mercados de três resultados.
type Line struct {
	Home float64
	Away float64
	Draw float64
}

// Pools são os totais apostados por resultado, já incluindo a aposta
// que disparou o recálculo.
type Pools struct {
	Home float64
	Away float64
	Draw float64
}

// Input reúne o estado do evento necessário para recomputar a linha.
type Input struct {
	ThreeWay bool
	Pools    Pools
	Prior    Line // percentuais; zero = ausente, aplica default
	Previous Line // odds correntes do evento antes desta aposta
	Alpha    float64
}

// Compute aplica, por resultado: odd de mercado a partir dos pools,
// mistura com o prior pesada por alpha e suavização limitada a Beta.
// Mercados de três resultados são renormalizados para somar 100;
// mercados de dois resultados NÃO são; comportamento herdado do sistema
// de referência, podendo a soma derivar de 100 ao longo das apostas.
func Compute(in Input) Line {
	prior := withDefaults(in.Prior, in.ThreeWay)
	prev := in.Previous
	if prev.Home == 0 && prev.Away == 0 && prev.Draw == 0 {
		// evento ainda sem odds persistidas: o prior é a primeira observação
		prev = prior
	}

	total := in.Pools.Home + in.Pools.Away
	if in.ThreeWay {
		total += in.Pools.Draw
	}

	out := Line{
		Home: blend(in.Pools.Home, total, prior.Home, prev.Home, in.Alpha),
		Away: blend(in.Pools.Away, total, prior.Away, prev.Away, in.Alpha),
	}
	if in.ThreeWay {
		out.Draw = blend(in.Pools.Draw, total, prior.Draw, prev.Draw, in.Alpha)
		out = renormalize(out)
	}
	return out
}

// blend calcula a odd suavizada de um único resultado.
func blend(pool, total, prior, previous, alpha float64) float64 {
	market := float64(PlaceholderOdds)
	if pool > 0 {
		market = 100 * total / pool
	}

	raw := alpha*prior + (1-alpha)*market

	// a odd visível anda no máximo Beta por aposta
	if diff := raw - previous; math.Abs(diff) > Beta {
		if diff > 0 {
			return previous + Beta
		}
		return previous - Beta
	}
	return raw
}

// renormalize escala a linha de três resultados para somar 100.
func renormalize(l Line) Line {
	sum := l.Home + l.Away + l.Draw
	if sum == 0 {
		return l
	}
	return Line{
		Home: l.Home * 100 / sum,
		Away: l.Away * 100 / sum,
		Draw: l.Draw * 100 / sum,
	}
}

// Initial devolve a linha de abertura de um evento recém-ingerido: o prior
// com defaults aplicados, antes de qualquer aposta.
func Initial(prior Line, threeWay bool) Line {
	l := withDefaults(prior, threeWay)
	if !threeWay {
		l.Draw = 0
	}
	return l
}

// withDefaults preenche priors ausentes (50 por lado, 20 para empate).
func withDefaults(p Line, threeWay bool) Line {
	if p.Home == 0 {
		p.Home = DefaultPrior
	}
	if p.Away == 0 {
		p.Away = DefaultPrior
	}
	if threeWay && p.Draw == 0 {
		p.Draw = DefaultDrawPrior
	}
	return p
}
