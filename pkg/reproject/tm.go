package reproject

import (
	"math"

	"github.com/wroge/wgs84"
)

// transverseMercator is an ellipsoidal transverse Mercator projection using
// the Krüger series to sixth order in n, accurate to well below a millimetre
// within a few thousand kilometres of the central meridian.
type transverseMercator struct {
	lon0, lat0 float64
	k0         float64
	e0, n0     float64
}

// tmSeries holds the spheroid-dependent constants of the Krüger series.
type tmSeries struct {
	e, e2 float64
	a     float64 // rectifying radius
	alpha [6]float64
	beta  [6]float64
}

func newTMSeries(s wgs84.Spheroid) tmSeries {
	f := 1 / s.Fi()
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n

	ts := tmSeries{e2: f * (2 - f)}
	ts.e = math.Sqrt(ts.e2)
	ts.a = s.A() / (1 + n) * (1 + n2/4 + n4/64 + n6/256)
	ts.alpha = [6]float64{
		n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800,
		13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360,
		61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440,
		49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600,
		34729*n5/80640 - 3418889*n6/1995840,
		212378941 * n6 / 319334400,
	}
	ts.beta = [6]float64{
		n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800,
		n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720,
		17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720,
		4397*n4/161280 - 11*n5/504 - 830251*n6/7257600,
		4583*n5/161280 - 108847*n6/3991680,
		20648693 * n6 / 638668800,
	}
	return ts
}

// taup maps tan(latitude) to tan(conformal latitude).
func (ts tmSeries) taup(tau float64) float64 {
	sig := math.Sinh(ts.e * math.Atanh(ts.e*tau/math.Hypot(1, tau)))
	return tau*math.Hypot(1, sig) - sig*math.Hypot(1, tau)
}

// tau inverts taup by Newton iteration.
func (ts tmSeries) tau(taup float64) float64 {
	t := taup / (1 - ts.e2)
	for i := 0; i < 10; i++ {
		tp := ts.taup(t)
		d := (taup - tp) * (1 + (1-ts.e2)*t*t) /
			((1 - ts.e2) * math.Hypot(1, tp) * math.Hypot(1, t))
		t += d
		if math.Abs(d) <= 1e-14*math.Max(1, math.Abs(t)) {
			break
		}
	}
	return t
}

// xiEta returns the normalized northing and easting of (lat, dlon), in radians.
func (ts tmSeries) xiEta(lat, dlon float64) (float64, float64) {
	tp := ts.taup(math.Tan(lat))
	c := math.Cos(dlon)
	xp := math.Atan2(tp, c)
	ep := math.Asinh(math.Sin(dlon) / math.Hypot(tp, c))

	xi, eta := xp, ep
	for j, a := range ts.alpha {
		k := float64(2 * (j + 1))
		xi += a * math.Sin(k*xp) * math.Cosh(k*ep)
		eta += a * math.Cos(k*xp) * math.Sinh(k*ep)
	}
	return xi, eta
}

func (p transverseMercator) FromLonLat(lon, lat float64, s wgs84.Spheroid) (float64, float64) {
	ts := newTMSeries(s)
	xi, eta := ts.xiEta(radians(lat), radians(lon-p.lon0))
	xi0, _ := ts.xiEta(radians(p.lat0), 0)

	return p.e0 + p.k0*ts.a*eta, p.n0 + p.k0*ts.a*(xi-xi0)
}

func (p transverseMercator) ToLonLat(east, north float64, s wgs84.Spheroid) (float64, float64) {
	ts := newTMSeries(s)
	xi0, _ := ts.xiEta(radians(p.lat0), 0)
	xi := (north-p.n0)/(p.k0*ts.a) + xi0
	eta := (east - p.e0) / (p.k0 * ts.a)

	xp, ep := xi, eta
	for j, b := range ts.beta {
		k := float64(2 * (j + 1))
		xp -= b * math.Sin(k*xi) * math.Cosh(k*eta)
		ep -= b * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	tp := math.Sin(xp) / math.Hypot(math.Sinh(ep), math.Cos(xp))
	lam := math.Atan2(math.Sinh(ep), math.Cos(xp))

	return p.lon0 + degrees(lam), degrees(math.Atan(ts.tau(tp)))
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

func tm(d wgs84.Datum, lon0, lat0, k0, e0, n0 float64) wgs84.ProjectedReferenceSystem {
	return wgs84.ProjectedReferenceSystem{
		Datum:      d,
		Projection: transverseMercator{lon0: lon0, lat0: lat0, k0: k0, e0: e0, n0: n0},
	}
}

// registry returns the EPSG repository with every transverse Mercator system
// replaced by the Krüger implementation. Projected systems carry no zone
// bounds, so positions just outside their nominal zone still transform.
func registry() *wgs84.Repository {
	r := wgs84.EPSG()

	for z := 1; z <= 60; z++ {
		lon0 := float64(z*6 - 183)
		r.Add(32600+z, tm(wgs84.WGS84(), lon0, 0, 0.9996, 500000, 0))
		r.Add(32700+z, tm(wgs84.WGS84(), lon0, 0, 0.9996, 500000, 10000000))
	}
	for z := 28; z <= 38; z++ {
		r.Add(25800+z, tm(wgs84.ETRS89(), float64(z*6-183), 0, 0.9996, 500000, 0))
	}
	for z := 2; z <= 5; z++ {
		r.Add(31464+z, tm(wgs84.DHDN2001(), float64(z*3), 0, 1, float64(z)*1000000+500000, 0))
	}

	r.Add(27700, tm(wgs84.OSGB36(), -2, 49, 0.9996012717, 400000, -100000))

	for _, m := range []struct {
		code, gk int
		lon0, e0 float64
	}{
		{31284, 31257, 10 + 1.0/3, 150000},
		{31285, 31258, 13 + 1.0/3, 450000},
		{31286, 31259, 16 + 1.0/3, 750000},
	} {
		r.Add(m.code, tm(wgs84.MGI(), m.lon0, 0, 1, m.e0, 0))
		r.Add(m.gk, tm(wgs84.MGI(), m.lon0, 0, 1, m.e0, -5000000))
	}

	return r
}
