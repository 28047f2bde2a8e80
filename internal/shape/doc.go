// Package shape localiza token y usuario dentro de las respuestas de /auth/*.
//
// El backend no tiene un contrato estable: el token puede venir como
// access_token, token o jwt_token, en la raíz o envuelto en data, data.data,
// payload, result... Parse prueba primero las variantes de envelope conocidas
// (structs tipados) y sólo si ninguna sirve cae a la búsqueda genérica acotada
// (FindToken/FindUser) sobre el JSON decodificado.
//
// Invariantes de la búsqueda genérica:
//   - profundidad máxima MaxDepth (6 niveles bajo la raíz), así termina
//     siempre aunque el payload sea enorme o absurdo;
//   - determinista: las claves de un objeto se recorren ordenadas;
//   - nunca muta el payload.
package shape
